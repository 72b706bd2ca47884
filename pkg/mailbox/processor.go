package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/platsvc/pkg/errs"
	"github.com/cuemby/platsvc/pkg/slog"
)

// Handler processes one decoded message.
type Handler func(msg Message)

// Processor is the MailboxProcessor dispatch loop: get a message, look up
// its handler by id, invoke it, and continue — logging and continuing on
// both unknown ids and a handler panic, so one bad message never kills
// the loop.
type Processor struct {
	handlers map[uint16]Handler
}

func NewProcessor() *Processor {
	return &Processor{handlers: make(map[uint16]Handler)}
}

// Register installs handler for id. The handler list is expected to be
// built once at component init.
func (p *Processor) Register(id uint16, handler Handler) {
	p.handlers[id] = handler
}

// Run drives the dispatch loop against mb until ctx is cancelled.
func (p *Processor) Run(ctx context.Context, mb Mailbox) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := mb.GetMessage(250 * time.Millisecond)
		if err != nil {
			if errors.Is(err, errs.ErrTimeout) {
				continue
			}
			// ErrNotActive: the mailbox was deactivated out from
			// under the loop.
			return
		}
		p.dispatch(msg)
	}
}

func (p *Processor) dispatch(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Logger.Error().Interface("panic", r).Uint16("msg_id", msg.ID()).Msg("mailbox: handler panicked, continuing")
		}
	}()

	handler, ok := p.handlers[msg.ID()]
	if !ok {
		slog.Logger.Warn().Uint16("msg_id", msg.ID()).Msg("mailbox: no handler registered, dropping message")
		return
	}
	handler(msg)
}
