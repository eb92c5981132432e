package config

import (
	"io/ioutil"
	"log"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tempDir := t.TempDir()
	if _, err := Initialize(tempDir, log.New(ioutil.Discard, "", 0)); err != nil {
		t.Fatal(err)
	}

	// Check that the config is valid
	cfg, err := Load(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, defaultConfig().Prompt, cfg.Prompt)

	t.Run("LoadConfigFile", func(t *testing.T) {
		_, err := Load(tempDir + "/" + ConfigurationName)
		assert.Nil(t, err)
	})

	t.Run("Idempotent", func(t *testing.T) {
		_, err := Initialize(tempDir, log.New(ioutil.Discard, "", 0))
		assert.Nil(t, err)
	})
}

func TestEventLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, ConfigurationName, []byte("prompt: '$ '\ncolor: never\nevent_log: logs/events.jsonl\n"), 0600))

	cfg, err := LoadFs(fs)
	require.Nil(t, err)
	assert.True(t, cfg.EventLogEnabled())

	fd, err := cfg.OpenEventLog()
	require.Nil(t, err)
	_, err = fd.Write([]byte("{}\n"))
	assert.Nil(t, err)
	assert.Nil(t, fd.Close())

	contents, err := afero.ReadFile(fs, "logs/events.jsonl")
	assert.Nil(t, err)
	assert.Equal(t, "{}\n", string(contents))
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, ConfigurationName, []byte("prompt: '$ '\ncolor: auto\nhistory_file: x\n"), 0600))

	_, err := LoadFs(fs)
	assert.Error(t, err)
}
