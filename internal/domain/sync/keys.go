package sync

// Durable local-state keys. The credential lives in two slots: the primary
// key plus a legacy-compatible fallback older installs still write.
const (
	StateKeyCredential         = "auth.token"
	StateKeyCredentialFallback = "token"
	StateKeyDeviceID           = "device.id"
	StateKeyLastUser           = "auth.last_user"
	StateKeyAuthSnapshot       = "auth.snapshot"
	StateKeyNetSnapshot        = "network.snapshot"
)
