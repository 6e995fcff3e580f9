package domain

// Platform identifies the storage vendor behind a provider.
type Platform string

// SyncMode describes how a provider is intended to receive data.
type SyncMode string

// TransportKind selects the wire transport used to reach a provider.
type TransportKind string

const (
	// Platforms
	PlatformAWS    Platform = "aws"
	PlatformAzure  Platform = "azure"
	PlatformGCP    Platform = "gcp"
	PlatformCustom Platform = "custom"

	// Sync modes
	SyncRealTime     SyncMode = "realtime"
	SyncBatch        SyncMode = "batch"
	SyncOfflineFirst SyncMode = "offline_first"
	SyncBackupOnly   SyncMode = "backup_only"

	// Transport kinds
	TransportS3      TransportKind = "s3"
	TransportREST    TransportKind = "rest"
	TransportGateway TransportKind = "gateway"
)

// PlatformTransports maps each platform to its default transport kind.
// Provider config may override per entry; adding a platform is a map edit,
// not a new code path.
var PlatformTransports = map[Platform]TransportKind{
	PlatformAWS:    TransportS3,
	PlatformAzure:  TransportREST,
	PlatformGCP:    TransportS3,
	PlatformCustom: TransportGateway,
}

// KnownPlatforms lists every platform the rate table ships defaults for.
var KnownPlatforms = []Platform{
	PlatformAWS,
	PlatformAzure,
	PlatformGCP,
	PlatformCustom,
}

// ValidPlatform reports whether p has a default transport mapping.
func ValidPlatform(p Platform) bool {
	_, ok := PlatformTransports[p]
	return ok
}
