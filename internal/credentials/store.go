package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/domain"
	"github.com/mundoiahelp-code/sistema-gestion-completo-sub003/internal/platform/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	credsFileName = "creds.json"
	metaFileName  = "meta.json"
	keysDirName   = "keys"
	keyFileSuffix = ".json"
	tmpFileSuffix = ".tmp"

	dirPerm  = 0700
	filePerm = 0600
)

var ErrNoSavedSession = errors.New("no saved session for tenant")

// Bundle is the opaque material a provider connection needs to resume a
// paired session.  An empty bundle starts a fresh pairing.
type Bundle struct {
	Creds json.RawMessage            `json:"creds,omitempty"`
	Keys  map[string]json.RawMessage `json:"keys,omitempty"`
}

func (b *Bundle) IsEmpty() bool {
	return b == nil || len(b.Creds) == 0
}

// Update is a credential change reported by the provider.  A key whose value
// is null is deleted.
type Update struct {
	Creds json.RawMessage            `json:"creds,omitempty"`
	Keys  map[string]json.RawMessage `json:"keys,omitempty"`
}

type SavedTenant struct {
	TenantID   domain.TenantID `json:"tenantId"`
	TenantName string          `json:"tenantName"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Store keeps one directory per tenant under a base path
type Store struct {
	fs       afero.Fs
	basePath string
	mu       sync.Mutex
}

func NewStore(fs afero.Fs, basePath string) (*Store, error) {
	if err := fs.MkdirAll(basePath, dirPerm); err != nil {
		return nil, err
	}
	return &Store{fs: fs, basePath: basePath}, nil
}

func NewOsStore(basePath string) (*Store, error) {
	return NewStore(afero.NewOsFs(), basePath)
}

func (s *Store) tenantDir(tenantID domain.TenantID) (string, error) {
	if err := domain.ValidateTenantID(tenantID); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, string(tenantID)), nil
}

// Load returns the saved bundle for the tenant, creating an empty directory
// the first time a tenant is seen
func (s *Store) Load(tenantID domain.TenantID, tenantName string) (*Bundle, error) {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return nil, err
	}

	if !exists {
		if err := s.fs.MkdirAll(filepath.Join(dir, keysDirName), dirPerm); err != nil {
			return nil, err
		}

		meta := SavedTenant{TenantID: tenantID, TenantName: tenantName, CreatedAt: time.Now().UTC()}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return nil, err
		}

		if err := s.writeFile(filepath.Join(dir, metaFileName), metaBytes); err != nil {
			return nil, err
		}

		logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID}).Debug("Created credential directory")

		return &Bundle{Keys: map[string]json.RawMessage{}}, nil
	}

	bundle := &Bundle{Keys: map[string]json.RawMessage{}}

	credsBytes, err := afero.ReadFile(s.fs, filepath.Join(dir, credsFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if len(credsBytes) > 0 {
		bundle.Creds = json.RawMessage(credsBytes)
	}

	keyFiles, err := afero.ReadDir(s.fs, filepath.Join(dir, keysDirName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	for _, keyFile := range keyFiles {
		name := keyFile.Name()
		if keyFile.IsDir() || !strings.HasSuffix(name, keyFileSuffix) {
			continue
		}

		keyName, err := url.PathUnescape(strings.TrimSuffix(name, keyFileSuffix))
		if err != nil {
			logger.Log.WithFields(logrus.Fields{"tenant_id": tenantID, "file": name}).Warn("Skipping unreadable key file name")
			continue
		}

		keyBytes, err := afero.ReadFile(s.fs, filepath.Join(dir, keysDirName, name))
		if err != nil {
			return nil, err
		}

		bundle.Keys[keyName] = json.RawMessage(keyBytes)
	}

	return bundle, nil
}

// Save persists a credential update.  It never recreates a directory that
// was cleared.
func (s *Store) Save(tenantID domain.TenantID, update *Update) error {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return err
	}

	if update == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := afero.DirExists(s.fs, dir)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNoSavedSession
	}

	if len(update.Creds) > 0 {
		if err := s.writeFile(filepath.Join(dir, credsFileName), update.Creds); err != nil {
			return err
		}
	}

	if len(update.Keys) == 0 {
		return nil
	}

	keysDir := filepath.Join(dir, keysDirName)
	if err := s.fs.MkdirAll(keysDir, dirPerm); err != nil {
		return err
	}

	for keyName, value := range update.Keys {
		keyPath := filepath.Join(keysDir, url.PathEscape(keyName)+keyFileSuffix)

		if isNull(value) {
			if err := s.fs.Remove(keyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			continue
		}

		if err := s.writeFile(keyPath, value); err != nil {
			return err
		}
	}

	return nil
}

// Clear deletes everything saved for the tenant.  Clearing a tenant with
// nothing saved is not an error.
func (s *Store) Clear(tenantID domain.TenantID) error {
	dir, err := s.tenantDir(tenantID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("unable to clear credentials for %s: %w", tenantID, err)
	}

	return nil
}

// List returns every tenant with a saved directory, sorted by tenant id
func (s *Store) List() ([]SavedTenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := afero.ReadDir(s.fs, s.basePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	saved := make([]SavedTenant, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		tenantID := domain.TenantID(entry.Name())
		if domain.ValidateTenantID(tenantID) != nil {
			continue
		}

		tenant := SavedTenant{TenantID: tenantID, TenantName: entry.Name()}

		metaBytes, err := afero.ReadFile(s.fs, filepath.Join(s.basePath, entry.Name(), metaFileName))
		if err == nil {
			var meta SavedTenant
			if json.Unmarshal(metaBytes, &meta) == nil && meta.TenantName != "" {
				tenant.TenantName = meta.TenantName
				tenant.CreatedAt = meta.CreatedAt
			}
		}

		saved = append(saved, tenant)
	}

	sort.Slice(saved, func(i, j int) bool { return saved[i].TenantID < saved[j].TenantID })

	return saved, nil
}

func (s *Store) writeFile(path string, data []byte) error {
	tmpPath := path + tmpFileSuffix
	if err := afero.WriteFile(s.fs, tmpPath, data, filePerm); err != nil {
		return err
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		s.fs.Remove(tmpPath)
		return err
	}
	return nil
}

func isNull(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
