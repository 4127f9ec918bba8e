package wal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) (*FileJournal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wal")
	j, err := OpenFileJournal(path, true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func appendRecords(t *testing.T, j Journal, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, j.Append(Record{
			Seq:    uint64(i),
			Action: ActionCreate,
			Time:   time.Now().UTC(),
			ID:     "id" + string(rune('0'+i)),
			Data:   "<Note/>",
		}))
	}
}

func TestFileJournal_AppendLoad(t *testing.T) {
	j, path := openTestJournal(t)
	appendRecords(t, j, 3)

	records, err := j.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(1), records[0].Seq)
	assert.Equal(t, "id3", records[2].ID)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))
}

func TestFileJournal_Load(t *testing.T) {
	const (
		rec1 = `{"seq":1,"action":"create","time":"2024-01-01T00:00:00Z","id":"a","data":"<Note/>"}`
		rec2 = `{"seq":2,"action":"delete","time":"2024-01-01T00:00:00Z","id":"a"}`
	)

	tests := []struct {
		name     string
		content  string
		want     int
		wantErr  bool
		wantFile string
	}{
		{name: "empty", content: "", want: 0, wantFile: ""},
		{name: "clean", content: rec1 + "\n" + rec2 + "\n", want: 2, wantFile: rec1 + "\n" + rec2 + "\n"},
		{name: "torn tail", content: rec1 + "\n" + `{"seq":2,"act`, want: 1, wantFile: rec1 + "\n"},
		{name: "garbage last line", content: rec1 + "\n" + "xx\n", want: 1, wantFile: rec1 + "\n"},
		{name: "missing final newline", content: rec1 + "\n" + rec2, want: 2, wantFile: rec1 + "\n" + rec2 + "\n"},
		{name: "blank lines", content: rec1 + "\n\n" + rec2 + "\n", want: 2, wantFile: rec1 + "\n\n" + rec2 + "\n"},
		{name: "corrupt middle", content: rec1 + "\nxx\n" + rec2 + "\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.wal")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			j, err := OpenFileJournal(path, false, nil)
			require.NoError(t, err)
			defer j.Close()

			records, err := j.Load()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCorruptJournal)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, string(data))
		})
	}
}

func TestFileJournal_AppendAfterRepair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")
	rec1 := `{"seq":1,"action":"create","time":"2024-01-01T00:00:00Z","id":"a","data":"<Note/>"}`
	require.NoError(t, os.WriteFile(path, []byte(rec1+"\n{\"seq\":2"), 0o600))

	j, err := OpenFileJournal(path, false, nil)
	require.NoError(t, err)
	defer j.Close()

	_, err = j.Load()
	require.NoError(t, err)
	require.NoError(t, j.Append(Record{Seq: 2, Action: ActionDelete, ID: "a"}))

	records, err := j.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, ActionDelete, records[1].Action)
}

func TestFileJournal_Truncate(t *testing.T) {
	j, _ := openTestJournal(t)
	appendRecords(t, j, 2)

	require.NoError(t, j.Truncate())
	records, err := j.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	appendRecords(t, j, 1)
	records, err = j.Load()
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryJournal_FailAppend(t *testing.T) {
	j := NewMemoryJournal()
	appendRecords(t, j, 1)

	j.FailAppend(os.ErrPermission)
	assert.ErrorIs(t, j.Append(Record{Seq: 2}), os.ErrPermission)
	assert.Equal(t, 1, j.Appends())

	j.FailAppend(nil)
	require.NoError(t, j.Append(Record{Seq: 2}))
	assert.Equal(t, 2, j.Appends())
}
