package mentorship

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mentorlink/internal/app/user"
	"mentorlink/internal/pkg/errs"
)

func TestNewContent(t *testing.T) {
	file := &FileRef{ID: "f1", Name: "cv.pdf"}

	c, err := NewContent("hi", nil)
	require.NoError(t, err)
	require.Equal(t, TextContent{Body: "hi"}, c)

	c, err = NewContent("  ", file)
	require.NoError(t, err)
	require.Equal(t, FileContent{File: *file}, c)

	c, err = NewContent("see attached", file)
	require.NoError(t, err)
	require.Equal(t, VariantCombined, c.Variant())

	_, err = NewContent(" \n", nil)
	require.True(t, errs.HasCode(err, errs.ErrMessageEmpty))
}

func TestMessageJSON_FlatWireForm(t *testing.T) {
	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := Message{
		ID:         "m1",
		SenderID:   "s1",
		SenderRole: user.RoleStudent,
		Content:    CombinedContent{Body: "notes", File: FileRef{ID: "f1", Name: "a.txt", Key: "rel/f1.txt"}},
		Timestamp:  ts,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	require.Equal(t, "notes", wire["message"])
	require.Equal(t, "combined", wire["variant"])
	require.NotContains(t, wire["file"], "Key")
	require.Equal(t, []any{}, wire["reactions"])

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	file, ok := FileOf(back.Content)
	require.True(t, ok)
	require.Equal(t, "f1", file.ID)
	require.Empty(t, file.Key)
	require.Equal(t, "notes", BodyOf(back.Content))
	require.True(t, back.Timestamp.Equal(ts))
}

func TestMessageJSON_RejectsEmpty(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":"m1","message":""}`), &m)
	require.True(t, errs.HasCode(err, errs.ErrMessageEmpty))

	_, err = json.Marshal(Message{ID: "m2"})
	require.Error(t, err)
}

func TestSortByTimestamp_Stable(t *testing.T) {
	t0 := time.Unix(100, 0)
	msgs := []Message{
		{ID: "c", Timestamp: t0.Add(2 * time.Second)},
		{ID: "a", Timestamp: t0},
		{ID: "b", Timestamp: t0},
	}
	SortByTimestamp(msgs)
	require.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestValidateFileType(t *testing.T) {
	require.Nil(t, ValidateFileType("notes.TXT", "text/plain; charset=utf-8"))
	require.NotNil(t, ValidateFileType("notes.exe", "application/octet-stream"))
	require.NotNil(t, ValidateFileType("photo.png", "text/plain"))
	require.NotNil(t, ValidateFileType("noext", "text/plain"))
}

func TestValidateFileSize(t *testing.T) {
	require.Nil(t, ValidateFileSize(MaxAttachmentSize))
	require.True(t, errs.HasCode(ValidateFileSize(MaxAttachmentSize+1), errs.ErrFileSizeTooLarge))
	require.True(t, errs.HasCode(ValidateFileSize(0), errs.ErrInvalidParams))
}

func TestSniffMIME(t *testing.T) {
	require.Equal(t, "text/plain", SniffMIME([]byte("plain words")))
	require.Equal(t, "application/pdf", SniffMIME([]byte("%PDF-1.7\n%...")))
}
