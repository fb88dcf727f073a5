package cli

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"go.uber.org/zap"

	"github.com/buildtall-systems/panelbot/internal/commands"
	"github.com/buildtall-systems/panelbot/internal/dm"
	"github.com/buildtall-systems/panelbot/internal/fsm"
	"github.com/buildtall-systems/panelbot/internal/inventory"
	"github.com/buildtall-systems/panelbot/internal/notify"
	"github.com/buildtall-systems/panelbot/internal/service"
)

// bot answers operator DMs: open, authorize, execute, reply.
type bot struct {
	core      *service.Core
	keys      dm.Keys
	publisher notify.EventPublisher
	admins    []string // hex pubkeys
	operators []string // hex pubkeys
	proc      *fsm.MessageProcessor
	logger    *zap.Logger
}

// npub renders a hex pubkey for logs. Hex never appears in log output.
func npub(hex string) string {
	n, err := nip19.EncodePublicKey(hex)
	if err != nil {
		return "invalid-pubkey"
	}
	return n
}

func (b *bot) handle(ctx context.Context, event *nostr.Event) error {
	msg, err := dm.Open(ctx, b.keys, event)
	if err != nil {
		return fmt.Errorf("opening dm %s: %w", event.ID, err)
	}

	sender := npub(msg.Sender)
	log := b.logger.With(zap.String("from", sender), zap.Stringer("protocol", msg.Protocol))

	return b.proc.Process(ctx,
		func(ctx context.Context) (string, error) {
			return b.execute(ctx, log, sender, msg), nil
		},
		func(ctx context.Context, text string) error {
			reply, err := dm.Reply(ctx, b.keys, msg, text)
			if err != nil {
				return err
			}
			return b.publisher.Publish(ctx, reply)
		},
	)
}

// execute produces the reply text. Command failures are replies, not
// processing errors.
func (b *bot) execute(ctx context.Context, log *zap.Logger, sender string, msg dm.Message) string {
	cmd := commands.Parse(msg.Content)
	if cmd == nil {
		return commands.HelpCmd(false).Message
	}

	role := commands.RoleOf(msg.Sender, b.admins, b.operators)
	if err := commands.CanExecute(cmd, role); err != nil {
		log.Warn("permission denied", zap.String("command", cmd.Name), zap.Error(err))
		return commands.Result{Error: err}.Text()
	}

	if !cmd.IsValid() {
		log.Info("unknown command", zap.String("command", cmd.Name))
		return commands.HelpCmd(role == commands.RoleAdmin).Message
	}

	log.Info("executing command", zap.Stringer("command", cmd), zap.Stringer("role", role))
	res := commands.Execute(inventory.WithActor(ctx, sender), b.core, cmd, role)
	if res.Error != nil {
		log.Info("command failed", zap.String("command", cmd.Name), zap.Error(res.Error))
	}
	return res.Text()
}
