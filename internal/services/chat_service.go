package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wahyu285/loundry/internal/repositories"
)

const (
	chatUnknownFormatReply = "❌ Format tidak dikenali. Ketik CEK<ID> (contoh: CEK15)"
	chatDateLayout         = "02-01-2006 15:04"
)

var chatOrderPattern = regexp.MustCompile(`^cek(\d+)`)

// ChatServiceDeps bundles collaborators for the chat status bot.
type ChatServiceDeps struct {
	Orders   repositories.OrderRepository
	Accounts repositories.AccountRepository
	Location *time.Location
}

type chatService struct {
	orders   repositories.OrderRepository
	accounts repositories.AccountRepository
	location *time.Location
	printer  *message.Printer
}

// NewChatService constructs the chat status reply service.
func NewChatService(deps ChatServiceDeps) (ChatService, error) {
	if deps.Orders == nil {
		return nil, errors.New("chat service: order repository is required")
	}
	location := deps.Location
	if location == nil {
		location = time.UTC
	}
	return &chatService{
		orders:   deps.Orders,
		accounts: deps.Accounts,
		location: location,
		printer:  message.NewPrinter(language.English),
	}, nil
}

// Reply answers "CEK<ID>" messages with a status summary of the order.
func (s *chatService) Reply(ctx context.Context, text string) (string, error) {
	match := chatOrderPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if match == nil {
		return chatUnknownFormatReply, nil
	}
	orderID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return chatUnknownFormatReply, nil
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return "❌ Order dengan ID " + match[1] + " tidak ditemukan.", nil
		}
		return "", mapRepositoryError(err, orderRepositoryErrors)
	}

	customer := order.CustomerID
	if s.accounts != nil {
		if account, err := s.accounts.FindByID(ctx, order.CustomerID); err == nil {
			customer = account.DisplayName()
		}
	}

	lines := []string{
		"📦 *Status Order #" + strconv.FormatInt(order.ID, 10) + "*",
		"👤 Pelanggan: " + customer,
		"🧺 Layanan: " + order.ServiceName,
		"💰 Total: Rp" + s.printer.Sprintf("%d", order.PriceTotal.Round(0).IntPart()),
		"🚚 Status: " + order.OrderStatus.Label(),
		"💵 Pembayaran: " + order.PaymentStatus.Label(),
		"📅 Tanggal: " + order.CreatedAt.In(s.location).Format(chatDateLayout),
	}
	return strings.Join(lines, "\n"), nil
}
