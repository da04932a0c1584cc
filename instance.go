package growthbook

import "encoding/json"

// APIHosts is the set of host/path configuration an Instance exposes to the
// repository. Every field mirrors a piece of configuration the SDK instance
// itself owns; the repository never invents a host or path.
type APIHosts struct {
	APIHost           string
	FeaturesPath      string
	RemoteEvalHost    string
	RemoteEvalPath    string
	StreamingHost     string
	StreamingPath     string
	APIRequestHeaders map[string]string
}

// Instance is the capability set the repository requires from an SDK
// instance. It is deliberately narrow: evaluation, attribute modeling and
// decryption policy belong to the instance, not the repository.
type Instance interface {
	// GetAPIInfo returns the pair used to build a plain (non remote-eval)
	// repository key: the API host and the client key.
	GetAPIInfo() (apiHost string, clientKey string)

	// GetAPIHosts returns the full host/path configuration used to build
	// requests and streaming URLs.
	GetAPIHosts() APIHosts

	// GetClientKey returns the client key used in request paths.
	GetClientKey() string

	// IsRemoteEval reports whether this instance evaluates features on the
	// server, which partitions the repository key by user ID and switches
	// the fetcher to a POST-with-attributes request.
	IsRemoteEval() bool

	// GetUserID returns the user identity used to partition the repository
	// key in remote-eval mode. Ignored otherwise.
	GetUserID() string

	// GetAttributes returns the attribute bag sent as the body of a
	// remote-eval request.
	GetAttributes() map[string]interface{}

	// GetDecryptionKey returns the key used to decrypt encryptedFeatures /
	// encryptedExperiments payload fields, if the instance was configured
	// with one.
	GetDecryptionKey() string

	// SetFeatures installs a plaintext features payload on the instance.
	SetFeatures(features json.RawMessage)

	// SetEncryptedFeatures decrypts cipherText with key (using decrypter)
	// and installs the result as the instance's features. An error here
	// propagates to the caller of RefreshFeatures without being caught by
	// the repository.
	SetEncryptedFeatures(cipherText string, key string, decrypter Decrypter) error

	// GetFeatures returns the instance's current features payload.
	GetFeatures() json.RawMessage

	// SetExperiments installs a plaintext experiments payload on the
	// instance.
	SetExperiments(experiments json.RawMessage)

	// SetEncryptedExperiments is the experiments analogue of
	// SetEncryptedFeatures.
	SetEncryptedExperiments(cipherText string, key string, decrypter Decrypter) error

	// GetExperiments returns the instance's current experiments payload.
	GetExperiments() json.RawMessage

	// Log is a diagnostic sink the repository calls at non-production
	// verbosity; instances that don't care can no-op it.
	Log(msg string, ctx map[string]interface{})
}
