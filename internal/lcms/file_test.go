package lcms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metadataCSV = `tracebase sample name,sample data header,mzxml filename,peak annotation filename,instrument,operator,date,ms mode,lc method,lc run length,lc description
xz971,BAT-xz971,BAT-xz971.mzXML,accucor1.xlsx,QE,George Costanza,2021-04-29,negative,polar-HILIC,25,polar HILIC 25 min
xz982,Br-xz982,Br-xz982.mzXML,accucor1.xlsx,QE,George Costanza,2021-04-29,negative,polar-HILIC,25,polar HILIC 25 min
`

func TestParseCSV_ValidFile(t *testing.T) {
	file, err := ParseCSV(strings.NewReader(metadataCSV), "study1_lcms.csv")
	require.NoError(t, err)

	require.Len(t, file.Rows, 2)

	row, ok := file.Rows["BAT-xz971"]
	require.True(t, ok)
	assert.Equal(t, "xz971", row.SampleName)
	assert.Equal(t, "George Costanza", row.Operator)
	assert.Equal(t, "negative", row.MSMode)
	assert.Equal(t, "polar-HILIC", row.LCMethod)
	assert.Equal(t, []string{"BAT-xz971", "Br-xz982"}, file.Headers())
	assert.NotEmpty(t, file.Checksum)
}

func TestParseTSV(t *testing.T) {
	tsv := strings.ReplaceAll(metadataCSV, ",", "\t")

	file, err := ParseTSV(strings.NewReader(tsv), "study1_lcms.tsv")
	require.NoError(t, err)
	require.Len(t, file.Rows, 2)
	assert.Equal(t, "xz971", file.Rows["BAT-xz971"].SampleName)
}

func TestParseCSV_HeadersAreCaseAndOrderInsensitive(t *testing.T) {
	shuffled := `Operator,DATE,ms mode,LC Method,lc run length,lc description,TraceBase Sample Name,Sample Data Header,mzXML Filename,Peak Annotation Filename,Instrument
George,2021-04-29,negative,polar-HILIC,25,desc,xz971,BAT-xz971,BAT-xz971.mzXML,accucor1.xlsx,QE
`

	file, err := ParseCSV(strings.NewReader(shuffled), "shuffled.csv")
	require.NoError(t, err)
	require.Len(t, file.Rows, 1)
	assert.Equal(t, "George", file.Rows["BAT-xz971"].Operator)
}

func TestParseCSV_HeaderSetMismatch(t *testing.T) {
	missingAndExtra := `sample data header,mzxml filename,bogus column
BAT-xz971,BAT-xz971.mzXML,x
`

	_, err := ParseCSV(strings.NewReader(missingAndExtra), "bad.csv")

	var headerErr *HeaderSetError

	require.ErrorAs(t, err, &headerErr)
	assert.Contains(t, headerErr.Missing, "operator")
	assert.Contains(t, headerErr.Missing, "tracebase sample name")
	assert.Equal(t, []string{"bogus column"}, headerErr.Unexpected)
}

func TestParseCSV_DuplicateSampleDataHeader(t *testing.T) {
	dupe := metadataCSV + "xz999,BAT-xz971,other.mzXML,accucor2.xlsx,QE,Elaine,2021-05-01,positive,polar-HILIC,25,desc\n"

	_, err := ParseCSV(strings.NewReader(dupe), "dupe.csv")

	var dupeErr *DuplicateHeaderError

	require.ErrorAs(t, err, &dupeErr)
	assert.Equal(t, "BAT-xz971", dupeErr.SampleDataHeader)
}

func TestParseCSV_EmptyFile(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), "empty.csv")
	assert.ErrorIs(t, err, ErrEmptyMetadataFile)
}

func TestParseTable_SkipsBlankRows(t *testing.T) {
	records := [][]string{
		{
			"tracebase sample name", "sample data header", "mzxml filename", "peak annotation filename",
			"instrument", "operator", "date", "ms mode", "lc method", "lc run length", "lc description",
		},
		{"", "", "", "", "", "", "", "", "", "", ""},
		{"xz971", "BAT-xz971", "", "", "QE", "George", "2021-04-29", "negative", "polar-HILIC", "25", ""},
	}

	file, err := ParseTable(records, "sheet")
	require.NoError(t, err)
	assert.Len(t, file.Rows, 1)
}

func TestHeaderByMzXML(t *testing.T) {
	file, err := ParseCSV(strings.NewReader(metadataCSV), "study1_lcms.csv")
	require.NoError(t, err)

	header, found, err := file.HeaderByMzXML("BAT-xz971")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "BAT-xz971", header)

	_, found, err = file.HeaderByMzXML("nonexistent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHeaderByMzXML_AmbiguousBasename(t *testing.T) {
	ambiguous := metadataCSV +
		"xz999,BAT-xz971_scan2,BAT-xz971.mzXML,accucor1.xlsx,QE,George Costanza,2021-04-29,negative,polar-HILIC,25,desc\n"

	file, err := ParseCSV(strings.NewReader(ambiguous), "study1_lcms.csv")
	require.NoError(t, err)

	_, found, err := file.HeaderByMzXML("BAT-xz971")
	require.Error(t, err)
	assert.False(t, found)
	assert.Contains(t, err.Error(), "multiple sample data headers")
}
