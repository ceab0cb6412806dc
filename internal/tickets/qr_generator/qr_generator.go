package qr_generator

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRGenerator renders ticket-stub QR codes. The payload is the plain ticket
// number — queue position is public data, so unlike paid tickets nothing is
// encrypted.
type QRGenerator struct {
	Size int
}

func NewQRGenerator() *QRGenerator {
	return &QRGenerator{Size: 256}
}

// GenerateTicketQR returns a PNG image encoding the ticket number.
func (g *QRGenerator) GenerateTicketQR(ticketNumber string) ([]byte, error) {
	if ticketNumber == "" {
		return nil, fmt.Errorf("ticket number is required")
	}
	png, err := qrcode.Encode(ticketNumber, qrcode.Medium, g.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}
