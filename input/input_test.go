package input

import (
	"os"
	"path/filepath"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
	require_ "github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name string, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require_.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFindLinkColumn(t *testing.T) {
	assert := assert_.New(t)

	i, err := FindLinkColumn([]string{"标题", "分享链接", "备注"})
	assert.NoError(err)
	assert.Equal(1, i)

	i, err = FindLinkColumn([]string{"Title", "Share URL"})
	assert.NoError(err)
	assert.Equal(1, i)

	_, err = FindLinkColumn([]string{"Title", "Notes"})
	assert.ErrorIs(err, ErrNoLinkColumn)
}

func TestReadLinksCSV(t *testing.T) {
	assert := assert_.New(t)
	path := writeFile(t, "links.csv", "\ufefftitle,url\n"+
		"a,https://x/video/1\n"+
		"b,\n"+
		"short\n"+
		"c,  https://x/video/2  \n"+
		"d,https://x/video/1\n")

	links, err := ReadLinks(path, "")
	assert.NoError(err)
	// Duplicates are kept.
	assert.Equal([]string{"https://x/video/1", "https://x/video/2", "https://x/video/1"}, links)
}

func TestReadLinksNamedColumn(t *testing.T) {
	assert := assert_.New(t)
	path := writeFile(t, "links.csv", "url,target\nhttps://wrong,https://right\n")

	links, err := ReadLinks(path, "target")
	assert.NoError(err)
	assert.Equal([]string{"https://right"}, links)

	_, err = ReadLinks(path, "missing")
	assert.ErrorIs(err, ErrNoLinkColumn)
}

func TestReadLinksNoColumn(t *testing.T) {
	assert := assert_.New(t)
	path := writeFile(t, "links.csv", "title,notes\na,b\n")
	_, err := ReadLinks(path, "")
	assert.ErrorIs(err, ErrNoLinkColumn)

	path = writeFile(t, "empty.csv", "")
	_, err = ReadLinks(path, "")
	assert.ErrorIs(err, ErrEmptyInput)
}

func TestReadLinksText(t *testing.T) {
	assert := assert_.New(t)
	path := writeFile(t, "links.txt", "https://x/video/1\n\n  https://x/video/2\n")
	links, err := ReadLinks(path, "")
	assert.NoError(err)
	assert.Equal([]string{"https://x/video/1", "https://x/video/2"}, links)
}

func TestReadLinksUnsupported(t *testing.T) {
	path := writeFile(t, "links.json", "[]")
	_, err := ReadLinks(path, "")
	assert_.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadLinksSpreadsheet(t *testing.T) {
	assert := assert_.New(t)
	require := require_.New(t)

	f := excelize.NewFile()
	sheet := f.GetSheetList()[0]
	require.NoError(f.SetCellValue(sheet, "A1", "标题"))
	require.NoError(f.SetCellValue(sheet, "B1", "视频链接"))
	require.NoError(f.SetCellValue(sheet, "A2", "first"))
	require.NoError(f.SetCellValue(sheet, "B2", "https://x/video/12345"))
	require.NoError(f.SetCellValue(sheet, "A3", "blank"))
	require.NoError(f.SetCellValue(sheet, "A4", "second"))
	require.NoError(f.SetCellValue(sheet, "B4", "https://v.example/abc"))
	path := filepath.Join(t.TempDir(), "links.xlsx")
	require.NoError(f.SaveAs(path))
	require.NoError(f.Close())

	links, err := ReadLinks(path, "")
	assert.NoError(err)
	assert.Equal([]string{"https://x/video/12345", "https://v.example/abc"}, links)
}
