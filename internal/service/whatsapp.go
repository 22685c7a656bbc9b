package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"sms-activation-tracker/internal/config"
	"sms-activation-tracker/internal/lifecycle"
	"sms-activation-tracker/internal/model"
	"sms-activation-tracker/pkg/logger"
)

// WhatsAppNotifier forwards received SMS codes to a WhatsApp chat
type WhatsAppNotifier struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	notifyJID types.JID
	qrFile    string
	logger    *logger.Logger
}

// NewWhatsAppNotifier opens the session store and prepares the client
func NewWhatsAppNotifier(ctx context.Context, cfg *config.WhatsAppConfig, log *logger.Logger) (*WhatsAppNotifier, error) {
	jid, err := ParseDestination(cfg.NotifyJID)
	if err != nil {
		return nil, err
	}

	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", cfg.DBPath), waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &WhatsAppNotifier{
		client:    whatsmeow.NewClient(deviceStore, waLog.Noop),
		container: container,
		notifyJID: jid,
		qrFile:    cfg.QRFile,
		logger:    log,
	}, nil
}

// ParseDestination accepts a full JID or a bare phone number
func ParseDestination(destination string) (types.JID, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return types.JID{}, fmt.Errorf("notification destination is required")
	}

	if strings.Contains(destination, "@") {
		jid, err := types.ParseJID(destination)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid destination JID: %w", err)
		}
		return jid, nil
	}

	phone := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, destination)
	if len(phone) < 8 || len(phone) > 15 {
		return types.JID{}, fmt.Errorf("invalid phone number format")
	}
	return types.NewJID(phone, types.DefaultUserServer), nil
}

// Connect resumes the stored session or pairs a new device with a QR code
func (n *WhatsAppNotifier) Connect(ctx context.Context) error {
	if n.client.Store.ID == nil {
		n.logger.Info("No logged in session found, starting QR code pairing...")
		return n.pair(ctx)
	}

	n.logger.Info("Existing session found, connecting...")
	n.client.AddEventHandler(n.handleEvent)
	if err := n.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	n.logger.Info("WhatsApp client connected successfully")
	return nil
}

func (n *WhatsAppNotifier) pair(ctx context.Context) error {
	qrChan, err := n.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	n.client.AddEventHandler(n.handleEvent)
	if err := n.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp: %w", err)
	}

	qrCount := 0
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			qrCount++
			n.showQR(evt.Code, qrCount)
		case "success":
			n.logger.Info("Pairing successful")
			return nil
		case "timeout":
			return fmt.Errorf("QR code scan timeout")
		case "error":
			return fmt.Errorf("QR code error: %v", evt.Error)
		default:
			n.logger.Info("QR channel event", "event", evt.Event)
		}
	}

	if n.client.IsLoggedIn() {
		return nil
	}
	return fmt.Errorf("QR channel closed before pairing completed")
}

// showQR renders the pairing code in the terminal and as a PNG file
func (n *WhatsAppNotifier) showQR(code string, count int) {
	if count == 1 {
		fmt.Println("\nScan this QR code with WhatsApp (Settings > Linked Devices > Link a Device):")
	} else {
		fmt.Printf("\nQR code refreshed (#%d)\n", count)
	}
	qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)

	if n.qrFile == "" {
		return
	}
	if err := qrcode.WriteFile(code, qrcode.Medium, 512, n.qrFile); err != nil {
		n.logger.Error("Failed to generate QR code PNG", "error", err)
		return
	}
	n.logger.Info("QR code saved", "file", n.qrFile, "refresh_count", count)
}

// Disconnect disconnects from WhatsApp
func (n *WhatsAppNotifier) Disconnect() {
	n.client.Disconnect()
	n.logger.Info("WhatsApp client disconnected")
}

// IsConnected checks if client is connected
func (n *WhatsAppNotifier) IsConnected() bool {
	return n.client.IsConnected()
}

// NotifyCode sends the received code of an activation to the configured chat
func (n *WhatsAppNotifier) NotifyCode(ctx context.Context, activation model.TrackedActivation) error {
	if !n.IsConnected() {
		return fmt.Errorf("WhatsApp client not connected")
	}

	message := &waE2E.Message{
		Conversation: proto.String(FormatCodeMessage(activation)),
	}
	resp, err := n.client.SendMessage(ctx, n.notifyJID, message)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	n.logger.WithActivationID(activation.ActivationID).Info("Code notification sent",
		"destination", n.notifyJID.String(),
		"message_id", resp.ID,
	)
	return nil
}

// FormatCodeMessage renders the notification text for one activation
func FormatCodeMessage(activation model.TrackedActivation) string {
	var b strings.Builder
	b.WriteString("SMS code received\n")
	fmt.Fprintf(&b, "Activation: %s\n", activation.ActivationID)
	if activation.ServiceCode != "" {
		fmt.Fprintf(&b, "Service: %s\n", activation.ServiceCode)
	}
	fmt.Fprintf(&b, "Phone: %s\n", activation.PhoneNumber)
	fmt.Fprintf(&b, "Code: %s", lifecycle.StripCode(activation.Code()))
	if activation.SMSText != nil && *activation.SMSText != "" {
		fmt.Fprintf(&b, "\n\n%s", *activation.SMSText)
	}
	if !activation.Remaining.Expired {
		fmt.Fprintf(&b, "\n\nExpires in %d:%02d", activation.Remaining.Minutes, activation.Remaining.Seconds)
	}
	return b.String()
}

func (n *WhatsAppNotifier) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.PairSuccess:
		n.logger.Info("Pairing successful", "jid", v.ID.String())
	case *events.Connected:
		n.logger.Info("WhatsApp client connected")
	case *events.Disconnected:
		n.logger.Warn("WhatsApp client disconnected")
	case *events.LoggedOut:
		n.logger.Error("Device logged out", "reason", v.Reason)
	}
}

// GetConnectionStatus returns connection status information
func (n *WhatsAppNotifier) GetConnectionStatus() map[string]interface{} {
	status := map[string]interface{}{
		"connected":   n.IsConnected(),
		"destination": n.notifyJID.String(),
	}

	if n.client.Store.ID != nil {
		status["phone"] = n.client.Store.ID.User
		status["device"] = "sms-activation-tracker"
	}

	return status
}

// GetJoinedGroups retrieves all groups the linked account is a member of
func (n *WhatsAppNotifier) GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error) {
	if !n.IsConnected() {
		return nil, fmt.Errorf("WhatsApp client not connected")
	}

	groups, err := n.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get joined groups: %w", err)
	}

	return groups, nil
}
