package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
rider:
  name: "  Arjun Rao "
  phone: "9876543210"
  blood_group: "B+"
  vehicle: "KA-01-AB-1234"
contacts:
  - name: Meera
    phone: "9876543211"
    relation: Sister
  - name: Broken
    phone: "12345"
    relation: Friend
  - name: ""
    phone: "9876543212"
`

func writeProfile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DropsInvalidContacts(t *testing.T) {
	p, err := Load(writeProfile(t, t.TempDir(), sample))
	require.NoError(t, err)

	assert.Equal(t, "Arjun Rao", p.Rider.Name)
	assert.Equal(t, "B+", p.Rider.BloodGroup)
	require.Len(t, p.Contacts, 1)
	assert.Equal(t, "Meera", p.Contacts[0].Name)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeProfile(t, t.TempDir(), "rider: [unterminated"))
	assert.Error(t, err)
}

func TestProfile_RiderNameFallback(t *testing.T) {
	assert.Equal(t, "Rider", Profile{}.RiderName())
	assert.Equal(t, "Asha", Profile{Rider: Rider{Name: "Asha"}}.RiderName())
}

func TestSource_ReloadKeepsPreviousOnError(t *testing.T) {
	path := writeProfile(t, t.TempDir(), sample)
	src, err := NewSource(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("rider: [bad"), 0o600))
	assert.Error(t, src.Reload())
	assert.Equal(t, "Arjun Rao", src.Current().Rider.Name)
}

func TestSource_WatchPicksUpChanges(t *testing.T) {
	path := writeProfile(t, t.TempDir(), sample)
	src, err := NewSource(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, src.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("rider:\n  name: Kiran\n"), 0o600))

	assert.Eventually(t, func() bool {
		return src.Current().Rider.Name == "Kiran"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStatic_HasNoWatch(t *testing.T) {
	src := Static(Profile{Rider: Rider{Name: "Asha"}})
	assert.Equal(t, "Asha", src.Current().Rider.Name)
	assert.Error(t, src.Watch(context.Background()))
}
