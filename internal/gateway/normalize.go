package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Shape identifies a known gateway integration and its wire format.
type Shape string

const (
	// ShapePaymentService is the local payment microservice.
	ShapePaymentService Shape = "payment_service"
	// ShapeAsaas is the Asaas payments API.
	ShapeAsaas Shape = "asaas"
)

// fieldMapping tells where a gateway shape exposes each PaymentResult field.
type fieldMapping struct {
	Endpoint string
	Link     string
	QRCode   string
	QRImage  string
}

var mappings = map[Shape]fieldMapping{
	ShapePaymentService: {
		Endpoint: "pagamentos",
		Link:     "paymentLink",
		QRCode:   "qrCode",
		QRImage:  "qrCodeBase64",
	},
	ShapeAsaas: {
		Endpoint: "payments",
		Link:     "invoiceUrl",
		QRCode:   "bankSlipUrl",
		QRImage:  "bankSlipBase64",
	},
}

// Shapes returns the names of every supported gateway shape.
func Shapes() []Shape {
	return []Shape{ShapePaymentService, ShapeAsaas}
}

var errImageEncoding = errors.New("qr code image is not valid base64")

// normalize maps a successful response body to a Result. A malformed image is
// reported through imageErr and leaves the rest of the result intact.
func normalize(m fieldMapping, body []byte) (result *Result, imageErr error, err error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	if payload == nil {
		return nil, nil, errors.New("decode response: empty document")
	}

	link, err := optionalString(payload, m.Link)
	if err != nil {
		return nil, nil, err
	}

	qrCode, err := optionalString(payload, m.QRCode)
	if err != nil {
		return nil, nil, err
	}

	encodedImage, err := optionalString(payload, m.QRImage)
	if err != nil {
		return nil, nil, err
	}

	result = &Result{
		PaymentLink: link,
		QRCode:      qrCode,
	}

	if encodedImage != "" {
		image, decodeErr := decodeImage(encodedImage)
		if decodeErr != nil {
			imageErr = decodeErr
		} else {
			result.QRCodeImage = image
		}
	}

	return result, imageErr, nil
}

func optionalString(payload map[string]json.RawMessage, field string) (string, error) {
	raw, ok := payload[field]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("decode field %s: %w", field, err)
	}

	return strings.TrimSpace(value), nil
}

func decodeImage(encoded string) ([]byte, error) {
	if idx := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && idx >= 0 {
		encoded = encoded[idx+1:]
	}

	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(image) == 0 {
		return nil, errImageEncoding
	}

	return image, nil
}
