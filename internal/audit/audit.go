package audit

import (
	"fmt"
	"sync"
)

var (
	globalWriter Writer = NopWriter{}
	globalMu     sync.RWMutex
	enabled      bool
)

// Init installs w as the global audit writer. A nil writer disables auditing.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if w == nil {
		globalWriter = NopWriter{}
		enabled = false
		return nil
	}
	globalWriter = w
	enabled = true
	return nil
}

// InitFile installs a FileWriter for path. An empty path disables auditing.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	return Init(w)
}

// Close closes the global writer and disables auditing.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	err := globalWriter.Close()
	globalWriter = NopWriter{}
	enabled = false
	return err
}

// Enabled returns whether audit logging is active.
func Enabled() bool {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return enabled
}

// Log writes an event to the global writer. If it fails the calling
// operation must fail too.
func Log(event *Event) error {
	globalMu.RLock()
	w := globalWriter
	globalMu.RUnlock()

	if err := w.Write(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

func result(success bool) Result {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// KeyInfo identifies a master key in an event. It never carries secrets.
type KeyInfo struct {
	Path        string
	Fingerprint string
	Algorithms  string
	Encoding    string
	Encrypted   bool
}

func (k KeyInfo) object(kind string) Object {
	return Object{Type: kind, Fingerprint: k.Fingerprint, Path: k.Path}
}

func (k KeyInfo) context(reason string) Context {
	return Context{Algorithms: k.Algorithms, Encoding: k.Encoding, Encrypted: k.Encrypted, Reason: reason}
}

// LogKeyGenerated logs the generation of a master key.
func LogKeyGenerated(key KeyInfo, success bool) error {
	return Log(NewEvent(EventKeyGenerated, result(success)).
		WithObject(key.object("master_key")).
		WithContext(key.context("")))
}

// LogKeyExported logs a secret key export.
func LogKeyExported(key KeyInfo, success bool) error {
	return Log(NewEvent(EventKeyExported, result(success)).
		WithObject(key.object("master_key")).
		WithContext(key.context("")))
}

// LogPublicKeyExported logs a public bundle export.
func LogPublicKeyExported(key KeyInfo, success bool) error {
	return Log(NewEvent(EventPublicKeyExported, result(success)).
		WithObject(key.object("public_key")).
		WithContext(key.context("")))
}

// LogKeyImported logs an import. A failed import records the reason.
func LogKeyImported(key KeyInfo, success bool, reason string) error {
	return Log(NewEvent(EventKeyImported, result(success)).
		WithObject(key.object("master_key")).
		WithContext(key.context(reason)))
}

// LogKeyRecovered logs the rebuilding of a master key from a recovery phrase.
func LogKeyRecovered(key KeyInfo, success bool) error {
	return Log(NewEvent(EventKeyRecovered, result(success)).
		WithObject(key.object("master_key")).
		WithContext(key.context("")))
}

// LogPassphraseChanged logs a re-encryption of a stored master key.
func LogPassphraseChanged(key KeyInfo, success bool) error {
	return Log(NewEvent(EventPassphraseChanged, result(success)).
		WithObject(key.object("master_key")).
		WithContext(key.context("")))
}

// LogRecoveryPhraseShown logs that the recovery phrase was displayed.
func LogRecoveryPhraseShown(key KeyInfo) error {
	return Log(NewEvent(EventRecoveryPhraseShown, ResultSuccess).
		WithObject(key.object("master_key")).
		WithContext(key.context("")))
}

// LogAuthFailed logs a failed passphrase authentication.
func LogAuthFailed(key KeyInfo, reason string) error {
	return Log(NewEvent(EventAuthFailed, ResultFailure).
		WithObject(key.object("master_key")).
		WithContext(key.context(reason)))
}
