package notify

import (
	"fmt"
	"strings"

	"storefront/internal/domain/model"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idr = message.NewPrinter(language.Indonesian)

// Rp 25.000
func Rupiah(amount int64) string {
	return "Rp " + idr.Sprintf("%d", amount)
}

// 画面/メッセージ用の短い注文番号（末尾8文字）
func ShortOrderID(id string) string {
	s := strings.ReplaceAll(id, "-", "")
	if len(s) > 8 {
		s = s[len(s)-8:]
	}
	return strings.ToUpper(s)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func orGuest(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Guest"
	}
	return s
}

// Render はイベントからメッセージ本文を作る
func Render(ev Event) (string, error) {
	o := ev.Order
	var b strings.Builder

	switch ev.Template {
	case TemplateCheckoutCreated:
		b.WriteString("🔔 *PESANAN BARU*\n\n")
		writeHeader(&b, o)
		b.WriteString("🛒 *Detail Pesanan:*\n")
		for i, it := range o.LineItems {
			fmt.Fprintf(&b, "%d. %s (%dx) - %s\n", i+1, it.Name, it.Quantity, Rupiah(it.Subtotal()))
		}
		fmt.Fprintf(&b, "\n💰 *Total: %s*\n\n", Rupiah(o.TotalAmount))
		b.WriteString("⏳ Status: Menunggu Pembayaran\n")
		if ev.PaymentURL != "" && ev.Channel == ChannelCustomer {
			fmt.Fprintf(&b, "💳 Bayar di sini: %s\n", ev.PaymentURL)
		}
		b.WriteString("\nTerima kasih! 🙏")

	case TemplatePaymentSuccess:
		if ev.Channel == ChannelAdmin {
			b.WriteString("💰 *PEMBAYARAN DITERIMA*\n\n")
			fmt.Fprintf(&b, "Order #%s telah dibayar!\n", ShortOrderID(o.ID))
			fmt.Fprintf(&b, "Customer: %s\n", orGuest(o.Customer.Name))
			fmt.Fprintf(&b, "Total: %s\n\n", Rupiah(o.TotalAmount))
			b.WriteString("Segera proses pesanan! 🚀")
			break
		}
		b.WriteString("✅ *PEMBAYARAN BERHASIL*\n\n")
		writeHeader(&b, o)
		b.WriteString("🛒 *Pesanan:*\n")
		for i, it := range o.LineItems {
			fmt.Fprintf(&b, "%d. %s (%dx)\n", i+1, it.Name, it.Quantity)
		}
		fmt.Fprintf(&b, "\n💰 *Total Dibayar: %s*\n\n", Rupiah(o.TotalAmount))
		b.WriteString("✅ Status: LUNAS\n\nPesanan Anda sedang diproses. Terima kasih! 🎉")

	default:
		return "", fmt.Errorf("unknown template %q", ev.Template)
	}

	return b.String(), nil
}

func writeHeader(b *strings.Builder, o model.Order) {
	fmt.Fprintf(b, "📋 Order ID: #%s\n", ShortOrderID(o.ID))
	fmt.Fprintf(b, "👤 Customer: %s\n", orGuest(o.Customer.Name))
	fmt.Fprintf(b, "📱 Phone: %s\n\n", orDash(o.Customer.Phone))
}
