package evidence

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func xlsxBytes(t *testing.T) []byte {
	t.Helper()
	wb := excelize.NewFile()
	defer wb.Close()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "date"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "event"))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", "2024-05-01"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B2", "reported to homeroom teacher"))
	_, err := wb.NewSheet("Empty")
	require.NoError(t, err)
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestNormalizeCSV(t *testing.T) {
	res := Normalize(File{Name: "log.csv", MIMEType: "text/csv", Data: []byte("\xEF\xBB\xBFdate,event\n2024-05-01,hit in hallway\n")})
	require.NoError(t, res.Err)
	frag, ok := res.Fragment.(ExtractedText)
	require.True(t, ok)
	require.Equal(t, SourceSpreadsheet, frag.Kind)
	require.Contains(t, frag.Text, "date")
	require.Contains(t, frag.Text, "hit in hallway")
	require.NotContains(t, frag.Text, "\xEF\xBB\xBF")
}

func TestNormalizeRaggedCSV(t *testing.T) {
	data := "date,event,note\n2024-05-01,hit in hallway,teacher saw\n2024-05-03,called names\n2024-05-07\n"
	res := Normalize(File{Name: "log.csv", MIMEType: "text/csv", Data: []byte(data)})
	require.NoError(t, res.Err)
	text := res.Fragment.(ExtractedText).Text
	require.Contains(t, text, "called names")
	require.Contains(t, text, "2024-05-07")

	rows, err := parseCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Len(t, rows[2], 2)
	require.Len(t, rows[3], 1)
}

func TestNormalizeShiftJISCSV(t *testing.T) {
	data, err := japanese.ShiftJIS.NewEncoder().String("日付,出来事\n5月1日,廊下で叩かれた\n")
	require.NoError(t, err)

	res := Normalize(File{Name: "記録.csv", MIMEType: "text/csv", Data: []byte(data)})
	require.NoError(t, res.Err)
	require.Contains(t, res.Fragment.(ExtractedText).Text, "廊下で叩かれた")
}

func TestNormalizeCSVDeclaredAsExcel(t *testing.T) {
	res := Normalize(File{Name: "log.csv", MIMEType: "application/vnd.ms-excel", Data: []byte("a,b\n1,2\n")})
	require.NoError(t, res.Err)
	require.Contains(t, res.Fragment.(ExtractedText).Text, "1")
}

func TestNormalizeEmptyCSV(t *testing.T) {
	res := Normalize(File{Name: "empty.csv", MIMEType: "text/csv"})
	var fe *FormatError
	require.ErrorAs(t, res.Err, &fe)
	require.Equal(t, SourceSpreadsheet, fe.Kind)
	require.Nil(t, res.Fragment)
}

func TestNormalizeWorkbook(t *testing.T) {
	res := Normalize(File{
		Name:     "timeline.xlsx",
		MIMEType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:     xlsxBytes(t),
	})
	require.NoError(t, res.Err)
	frag := res.Fragment.(ExtractedText)
	require.Equal(t, SourceSpreadsheet, frag.Kind)
	require.Contains(t, frag.Text, "Sheet: Sheet1")
	require.Contains(t, frag.Text, "reported to homeroom teacher")
	require.NotContains(t, frag.Text, "Sheet: Empty")
}

func TestNormalizeCorruptWorkbook(t *testing.T) {
	res := Normalize(File{Name: "broken.xlsx", MIMEType: "application/vnd.ms-excel", Data: []byte("not a zip")})
	var fe *FormatError
	require.ErrorAs(t, res.Err, &fe)
	require.Contains(t, res.Warning(), "broken.xlsx")
}

func TestNormalizeCorruptPDF(t *testing.T) {
	res := Normalize(File{Name: "report.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4 garbage")})
	var fe *FormatError
	require.ErrorAs(t, res.Err, &fe)
	require.Equal(t, SourcePDF, fe.Kind)
	require.Equal(t, "report.pdf", fe.Name)
	require.Nil(t, res.Fragment)
}

func TestNormalizeImage(t *testing.T) {
	res := Normalize(File{Name: "bruise.png", MIMEType: "image/png", Data: pngBytes(t, 4, 3)})
	require.NoError(t, res.Err)
	img, ok := res.Fragment.(InlineImage)
	require.True(t, ok)
	require.Equal(t, "image/png", img.MIMEType)
	require.Equal(t, 4, img.Width)
	require.Equal(t, 3, img.Height)
	require.True(t, img.TakenAt.IsZero())
}

func TestNormalizeBrokenImage(t *testing.T) {
	data := pngBytes(t, 8, 8)
	res := Normalize(File{Name: "cut.png", MIMEType: "image/png", Data: data[:len(data)/2]})
	var fe *FormatError
	require.ErrorAs(t, res.Err, &fe)
	require.Equal(t, SourceImage, fe.Kind)
}

func TestNormalizeAudioIsVerbatim(t *testing.T) {
	data := []byte("ID3\x03\x00fake mp3 bytes")
	res := Normalize(File{Name: "call.mp3", MIMEType: "audio/mpeg", Data: data})
	require.NoError(t, res.Err)
	require.Equal(t, InlineAudio{Name: "call.mp3", MIMEType: "audio/mpeg", Data: data}, res.Fragment)
}

func TestNormalizeUnsupported(t *testing.T) {
	res := Normalize(File{Name: "notes.docx", MIMEType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"})
	require.ErrorIs(t, res.Err, ErrUnsupportedType)
	require.Contains(t, res.Warning(), "unsupported")
}

func TestNormalizeDetectsMissingType(t *testing.T) {
	res := Normalize(File{Name: "photo.PNG", Data: pngBytes(t, 1, 1)})
	require.NoError(t, res.Err)
	require.Equal(t, "image/png", res.File.MIMEType)
}

func TestNormalizeAllKeepsGoing(t *testing.T) {
	rep := NormalizeAll([]File{
		{Name: "bad.pdf", MIMEType: "application/pdf", Data: []byte("nope")},
		{Name: "a.csv", MIMEType: "text/csv", Data: []byte("x,y\n1,2\n")},
		{Name: "v.mp3", MIMEType: "audio/mpeg", Data: []byte("x")},
	})
	require.True(t, rep.Provided())
	require.Len(t, rep.Results, 3)
	frags := rep.Fragments()
	require.Len(t, frags, 2)
	require.Equal(t, "a.csv", frags[0].SourceName())
	require.Equal(t, "v.mp3", frags[1].SourceName())
	require.Len(t, rep.Warnings(), 1)
	require.Contains(t, rep.Warnings()[0], "bad.pdf")

	require.False(t, NormalizeAll(nil).Provided())
}

func TestFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minutes.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o600))

	f, err := FromPath(path, "")
	require.NoError(t, err)
	require.Equal(t, "minutes.csv", f.Name)
	require.Equal(t, "text/csv", f.MIMEType)

	_, err = FromPath(filepath.Join(t.TempDir(), "missing.pdf"), "")
	require.Error(t, err)
}
