package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ezoic/tabml/pkg/errors"
)

// FormatVersion is the envelope format written by Export.
const FormatVersion = "1.0"

// ModelSpec is the envelope metadata.
type ModelSpec struct {
	// Name identifies what the payload holds (e.g. "FittedPipeline").
	Name          string `json:"name"`
	FormatVersion string `json:"format_version"`
	// Producer is the program version that wrote the envelope.
	Producer string `json:"producer,omitempty"`
}

// Envelope is the on-disk form of a persisted object: metadata, a SHA-256
// digest of the compact payload, and the payload itself.
type Envelope struct {
	ModelSpec ModelSpec       `json:"model_spec"`
	Digest    string          `json:"digest"`
	Params    json.RawMessage `json:"params"`
}

// Seal marshals params into a new envelope named name.
func Seal(name string, params interface{}) (*Envelope, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "marshal params")
	}
	digest, err := Digest(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		ModelSpec: ModelSpec{Name: name, FormatVersion: FormatVersion},
		Digest:    digest,
		Params:    payload,
	}, nil
}

// Digest returns the hex SHA-256 of the compact form of a JSON payload, so
// indentation applied on write does not change it.
func Digest(payload []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return "", errors.Wrap(err, "compact params")
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks the format version and the payload digest.
func (e *Envelope) Verify() error {
	if e.ModelSpec.FormatVersion == "" {
		return errors.NewValueError("Envelope.Verify", "format_version is required")
	}
	if e.ModelSpec.FormatVersion != FormatVersion {
		return errors.NewValueError("Envelope.Verify",
			fmt.Sprintf("unsupported format version: %s", e.ModelSpec.FormatVersion))
	}
	if e.ModelSpec.Name == "" {
		return errors.NewValueError("Envelope.Verify", "model name is required")
	}
	got, err := Digest(e.Params)
	if err != nil {
		return err
	}
	if got != e.Digest {
		return errors.Wrapf(errors.ErrDigestMismatch, "expected %s, computed %s", e.Digest, got)
	}
	return nil
}

// Open verifies the envelope and decodes its payload into v. The envelope
// name must equal name.
func (e *Envelope) Open(name string, v interface{}) error {
	if err := e.Verify(); err != nil {
		return err
	}
	if e.ModelSpec.Name != name {
		return errors.NewValueError("Envelope.Open",
			fmt.Sprintf("expected %s, got %s", name, e.ModelSpec.Name))
	}
	if err := json.Unmarshal(e.Params, v); err != nil {
		return errors.Wrap(err, "unmarshal params")
	}
	return nil
}

// Export writes params as an indented envelope to w.
func Export(w io.Writer, name string, params interface{}) error {
	if err := writeEnvelope(w, name, params); err != nil {
		return errors.NewPersistenceError("export", "", err)
	}
	return nil
}

// Import reads and verifies an envelope from r.
func Import(r io.Reader) (*Envelope, error) {
	env, err := readEnvelope(r)
	if err != nil {
		return nil, errors.NewPersistenceError("import", "", err)
	}
	return env, nil
}

// SaveFile exports params to path.
func SaveFile(path, name string, params interface{}) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewPersistenceError("save", path, errors.Wrap(err, "create file"))
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewPersistenceError("save", path, cerr)
		}
	}()
	if err := writeEnvelope(f, name, params); err != nil {
		return errors.NewPersistenceError("save", path, err)
	}
	return nil
}

// LoadFile imports a verified envelope from path.
func LoadFile(path string) (*Envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, errors.Wrap(err, "open file"))
	}
	defer func() { _ = f.Close() }()
	env, err := readEnvelope(f)
	if err != nil {
		return nil, errors.NewPersistenceError("load", path, err)
	}
	return env, nil
}

func writeEnvelope(w io.Writer, name string, params interface{}) error {
	env, err := Seal(name, params)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(env), "encode envelope")
}

func readEnvelope(r io.Reader) (*Envelope, error) {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if err := env.Verify(); err != nil {
		return nil, err
	}
	return &env, nil
}
