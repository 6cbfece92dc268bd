package usecase

import (
	"context"
	"errors"
	"strings"

	"melo/internal/domain"
	"melo/internal/ports"
)

var ErrNoLyrics = errors.New("no lyrics to copy")

type lyricsCopier struct {
	clipboard ports.Clipboard
	events    ports.EventSink
}

func newLyricsCopier(clipboard ports.Clipboard, events ports.EventSink) lyricsCopier {
	return lyricsCopier{clipboard: clipboard, events: events}
}

func (c lyricsCopier) Copy(ctx context.Context, lyrics string) error {
	if strings.TrimSpace(lyrics) == "" {
		return ErrNoLyrics
	}
	if err := c.clipboard.SetText(ctx, lyrics); err != nil {
		c.events.SessionError(domain.ErrorCodeClipboard, "lyrics ready but clipboard write failed")
		return domain.NewError(domain.ErrorCodeClipboard, err)
	}
	return nil
}
