package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/CometPilot/backend/internal/ai"
	"github.com/GriffinCanCode/CometPilot/backend/internal/command"
	"github.com/GriffinCanCode/CometPilot/backend/internal/ocr"
	"github.com/GriffinCanCode/CometPilot/backend/internal/sequencer"
	"github.com/GriffinCanCode/CometPilot/backend/internal/shared/id"
)

const (
	chatTimeout = 2 * time.Minute
	ocrTimeout  = 30 * time.Second
)

var (
	errNoAI     = errors.New("AI engine not available")
	errNoOCR    = errors.New("OCR service not available")
	errNoScreen = errors.New("OCR/AI not available")
	errNoQueue  = errors.New("command queue not available")
	errNoPrompt = errors.New("confirmation queue not available")
)

func (b *Bridge) handle(c *client, msg Inbound) {
	var err error
	switch msg.Type {
	case TypeChat, TypeAIChat:
		err = b.handleChat(c, msg)
	case TypeOCRClick:
		err = b.handleOCRClick(c, msg)
	case TypeDescribe:
		err = b.handleDescribe(c)
	case TypeCommandsRun:
		err = b.handleCommands(c, msg)
	case TypeConfirmAnswer:
		err = b.handleAnswer(c, msg)
	case TypePing:
		c.send(Outbound{"type": TypePong, "timestamp": time.Now().UnixMilli()})
	default:
		c.send(errorMessage(fmt.Sprintf("Unknown message type: %s", msg.Type), ""))
	}

	if err != nil {
		c.log.Debug("bridge message failed", zap.String("type", msg.Type), zap.Error(err))
		c.send(errorMessage(err.Error(), msg.Type))
	}
}

func (b *Bridge) handleChat(c *client, msg Inbound) error {
	if b.deps.Chat == nil {
		return errNoAI
	}
	if strings.TrimSpace(msg.Message) == "" {
		return errors.New("message is required")
	}

	c.send(Outbound{"type": TypeAIStatus, "status": "generating"})

	ctx, cancel := context.WithTimeout(c.ctx, chatTimeout)
	defer cancel()

	response, err := b.deps.Chat.Chat(ctx, ai.Request{Message: msg.Message, Model: msg.Model})
	if err != nil {
		return err
	}
	c.send(Outbound{"type": TypeAIDone, "response": response})
	return nil
}

func (b *Bridge) handleOCRClick(c *client, msg Inbound) error {
	if target := strings.TrimSpace(msg.Target); target != "" {
		if b.deps.Clicker == nil {
			return errNoOCR
		}
		c.send(Outbound{"type": TypeOCRStatus, "status": "clicking"})
		res := b.deps.Clicker.OCRClick(c.ctx, target)
		c.send(Outbound{"type": TypeOCRResult, "result": res})
		return nil
	}

	if b.deps.Scanner == nil {
		return errNoOCR
	}
	c.send(Outbound{"type": TypeOCRStatus, "status": "scanning"})

	ctx, cancel := context.WithTimeout(c.ctx, ocrTimeout)
	defer cancel()

	words, err := b.deps.Scanner.CaptureAndOCR(ctx, "")
	if err != nil {
		return err
	}
	if len(words) > MaxListedWords {
		words = words[:MaxListedWords]
	}
	if words == nil {
		words = []ocr.Word{}
	}
	c.send(Outbound{"type": TypeOCRResult, "words": words})
	return nil
}

func (b *Bridge) handleDescribe(c *client) error {
	if b.deps.Describer == nil {
		return errNoScreen
	}
	ctx, cancel := context.WithTimeout(c.ctx, chatTimeout)
	defer cancel()

	description, err := b.deps.Describer.Describe(ctx)
	if err != nil {
		return err
	}
	c.send(Outbound{"type": TypeDescription, "description": description})
	return nil
}

func (b *Bridge) handleCommands(c *client, msg Inbound) error {
	if b.deps.Queue == nil {
		return errNoQueue
	}
	cmds := msg.Commands
	if len(cmds) == 0 {
		cmds = command.Parse(msg.Text).Commands
	}
	if len(cmds) == 0 {
		return errors.New("no commands to run")
	}

	q := b.deps.Queue.Start(cmds, sequencer.Options{ContinueOnError: msg.ContinueOnError})
	c.send(Outbound{"type": TypeCommandsQueued, "queueId": q.ID(), "count": len(cmds)})
	return nil
}

func (b *Bridge) handleAnswer(c *client, msg Inbound) error {
	if b.deps.Confirmations == nil {
		return errNoPrompt
	}
	if err := b.deps.Confirmations.Answer(id.ConfirmationID(msg.ID), msg.Allow); err != nil {
		return err
	}
	c.log.Info("confirmation answered", zap.String("id", msg.ID), zap.Bool("allow", msg.Allow))
	c.send(Outbound{"type": TypeConfirmed, "id": msg.ID, "allow": msg.Allow})
	return nil
}
