package eutel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "6", formatNumber(6))
	assert.Equal(t, "0.3", formatNumber(0.1+0.2))
	assert.Equal(t, "-3", formatNumber(-3))
	assert.Equal(t, "1e-07", formatNumber(1e-7))
	assert.Equal(t, "1.23457e+08", formatNumber(123456789))
}

func TestSnapshotParameters(t *testing.T) {
	params := Parameters{
		"BackBiasVoltage":    -6,
		"Ithr_1":             51,
		"Vcasn_1":            57,
		"Vcasn_0":            105,
		"Thr_1_4":            98.5,
		"NoiseRMS_1_0":       0.75,
		"m_strobe_length_1":  80,
		"m_trigger_delay_0":  75,
		"m_readout_delay_1":  10,
		"m_strobeb_length_1": 20,
	}
	s := SnapshotParameters(params, 1)
	assert.Equal(t, -6.0, s.BackBias)
	assert.Equal(t, 51, s.Ithr)
	assert.Equal(t, 57, s.Vcasn)
	assert.Equal(t, 0, s.Idb)
	assert.Equal(t, 98.5, s.Thr[4])
	assert.Equal(t, 0.75, s.NoiseRMS[0])
	assert.Equal(t, 80, s.StrobeLength)
	assert.Equal(t, 0, s.TriggerDelay)
	assert.Equal(t, 10, s.ReadoutDelay)
	assert.Equal(t, 20, s.StrobeBLength)
}

func TestSnapshotFields(t *testing.T) {
	fields := SettingsSnapshot{RunNumber: 5, Energy: 6, ChipID: "W5", Irradiation: "0"}.Fields()
	assert.Len(t, fields, 37)
	assert.Equal(t, []string{"5", "6", "W5", "0", ""}, fields[:5])
	assert.Equal(t, "0", fields[len(fields)-1])
}

func TestSettingsFileRow(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "settings_DUT0.txt")
	settingsFile, err := OpenSettingsFile(filename)
	require.NoError(t, err)

	// closing without a started row writes nothing
	require.NoError(t, settingsFile.WriteClosing(10))
	assert.False(t, settingsFile.RowStarted())

	require.NoError(t, settingsFile.WriteConfiguration(SettingsSnapshot{RunNumber: 5, Energy: 6}))
	assert.True(t, settingsFile.RowStarted())
	require.NoError(t, settingsFile.WriteClosing(42))
	require.NoError(t, settingsFile.Close())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, settingsHeader, lines[0])

	fields := strings.Split(lines[1], ";")
	assert.Len(t, fields, 37+1+settingsPlaceholders)
	assert.Equal(t, "42", fields[37])
	assert.Equal(t, strings.Repeat("0;", settingsPlaceholders-1)+"0", strings.Join(fields[38:], ";"))
}

func TestSettingsFileHeaderWrittenOnce(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "settings_DUT3.txt")
	for run := 1; run <= 2; run++ {
		settingsFile, err := OpenSettingsFile(filename)
		require.NoError(t, err)
		require.NoError(t, settingsFile.WriteConfiguration(SettingsSnapshot{RunNumber: run}))
		require.NoError(t, settingsFile.WriteClosing(run*100))
		require.NoError(t, settingsFile.Close())
	}
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), settingsHeader))
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestOpenSettingsFileMissingFolder(t *testing.T) {
	_, err := OpenSettingsFile(filepath.Join(t.TempDir(), "missing", "settings_DUT0.txt"))
	var openErr *ErrOpenFile
	assert.ErrorAs(t, err, &openErr)
}
