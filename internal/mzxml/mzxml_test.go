package mzxml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `<?xml version="1.0" encoding="ISO-8859-1"?>
<mzXML xmlns="http://sashimi.sourceforge.net/schema_revision/mzXML_3.2">
  <msRun scanCount="3">
    <parentFile fileName="C:\data\BAT-xz971.raw" fileType="RAWData" fileSha1="abc"/>
    <scan num="1" msLevel="1" polarity="-" lowMz="70.002" highMz="1000.5"/>
    <scan num="2" msLevel="1" polarity="-" lowMz="69.5" highMz="998.2"/>
    <scan num="3" msLevel="1" polarity="-" lowMz="71.1" highMz="1001.9"/>
  </msRun>
</mzXML>`

func TestParse_ExtractsScanAttributes(t *testing.T) {
	parsed, err := Parse(strings.NewReader(sampleDocument), "testdata/BAT-xz971.mzXML")
	require.NoError(t, err)

	assert.Equal(t, "BAT-xz971", parsed.Name)
	assert.Equal(t, "BAT-xz971.raw", parsed.RawFileName)
	assert.Equal(t, PolarityNegative, parsed.Polarity)
	assert.InDelta(t, 69.5, parsed.MzMin, 1e-9)
	assert.InDelta(t, 1001.9, parsed.MzMax, 1e-9)
	assert.Equal(t, 3, parsed.ScanCount)
	assert.Len(t, parsed.Checksum, 64, "BLAKE2b-256 hex digest")
}

func TestParse_ChecksumIsDeterministic(t *testing.T) {
	first, err := Parse(strings.NewReader(sampleDocument), "a.mzXML")
	require.NoError(t, err)

	second, err := Parse(strings.NewReader(sampleDocument), "a.mzXML")
	require.NoError(t, err)

	assert.Equal(t, first.Checksum, second.Checksum)

	changed, err := Parse(strings.NewReader(sampleDocument+" "), "a.mzXML")
	require.NoError(t, err)
	assert.NotEqual(t, first.Checksum, changed.Checksum)
}

func TestParse_MixedPolarity(t *testing.T) {
	doc := `<mzXML>
  <msRun>
    <scan num="1" polarity="-" lowMz="70" highMz="1000"/>
    <scan num="2" polarity="+" lowMz="70" highMz="1000"/>
  </msRun>
</mzXML>`

	_, err := Parse(strings.NewReader(doc), "mixed.mzXML")
	assert.ErrorIs(t, err, ErrMixedPolarity)
}

func TestParse_StartEndMzFallback(t *testing.T) {
	doc := `<mzXML>
  <msRun>
    <scan num="1" polarity="+" startMz="85" endMz="1255"/>
  </msRun>
</mzXML>`

	parsed, err := Parse(strings.NewReader(doc), "window.mzXML")
	require.NoError(t, err)

	assert.Equal(t, PolarityPositive, parsed.Polarity)
	assert.InDelta(t, 85.0, parsed.MzMin, 1e-9)
	assert.InDelta(t, 1255.0, parsed.MzMax, 1e-9)
}

func TestParse_FirstScanWithoutRange(t *testing.T) {
	doc := `<mzXML>
  <msRun>
    <scan num="1" polarity="+"/>
    <scan num="2" polarity="+" lowMz="100" highMz="900"/>
  </msRun>
</mzXML>`

	parsed, err := Parse(strings.NewReader(doc), "partial.mzXML")
	require.NoError(t, err)

	assert.InDelta(t, 100.0, parsed.MzMin, 1e-9)
	assert.InDelta(t, 900.0, parsed.MzMax, 1e-9)
}

func TestParse_NoScans(t *testing.T) {
	_, err := Parse(strings.NewReader(`<mzXML><msRun/></mzXML>`), "empty.mzXML")
	assert.ErrorIs(t, err, ErrNoScans)
}

func TestParse_UnrecognizedPolarity(t *testing.T) {
	doc := `<mzXML><msRun><scan num="1" polarity="any" lowMz="1" highMz="2"/></msRun></mzXML>`

	_, err := Parse(strings.NewReader(doc), "odd.mzXML")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polarity")
}

func TestParse_MalformedXML(t *testing.T) {
	_, err := Parse(strings.NewReader(`<mzXML><scan`), "broken.mzXML")
	assert.Error(t, err)
}

func TestBaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"dir/BAT-xz971.mzXML", "BAT-xz971"},
		{"BAT-xz971.mzxml", "BAT-xz971"},
		{"/abs/path/Br-xz982_pos.mzXML", "Br-xz982_pos"},
		{"plainname", "plainname"},
		{"other.txt", "other.txt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BaseName(tt.path), tt.path)
	}
}
