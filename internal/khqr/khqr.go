// Package khqr builds KHQR payment payloads for the Bakong scheme. A payload
// is an EMVCo-style TLV string; its MD5 hex digest is the fingerprint used to
// look the transaction up on the Bakong API.
package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	tagPayloadFormat      = "00"
	tagPointOfInitiation  = "01"
	tagMerchantAccount    = "29"
	tagMerchantCategory   = "52"
	tagCurrency           = "53"
	tagAmount             = "54"
	tagCountryCode        = "58"
	tagMerchantName       = "59"
	tagMerchantCity       = "60"
	tagAdditionalData     = "62"
	tagCRC                = "63"
	subTagAccountID       = "00"
	subTagBillNumber      = "01"
	subTagMobileNumber    = "02"
	subTagStoreLabel      = "03"
	subTagTerminalLabel   = "07"
	payloadFormatValue    = "01"
	pointOfInitiationDyn  = "12" // dynamic QR, amount fixed per transaction
	merchantCategoryOther = "5999"
	countryCodeKH         = "KH"
)

// ISO 4217 numeric codes for the two currencies the scheme settles.
var currencyCodes = map[string]string{
	"USD": "840",
	"KHR": "116",
}

// ErrMissingAccount is returned when no bank account is configured.
var ErrMissingAccount = errors.New("bank account is required")

// ErrUnsupportedCurrency is returned for currencies outside USD/KHR.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Merchant holds the static merchant identity baked into every payload.
type Merchant struct {
	BankAccount string
	Name        string
	City        string
	StoreLabel  string
	Phone       string
	Terminal    string
}

// Generator produces KHQR payloads and fingerprints for one merchant.
type Generator struct {
	merchant Merchant
}

// NewGenerator creates a Generator for the given merchant.
func NewGenerator(m Merchant) *Generator {
	return &Generator{merchant: m}
}

// Generate builds the dynamic KHQR payload for a single transaction and
// returns it along with its MD5 hex fingerprint.
func (g *Generator) Generate(amount float64, currency, billNumber string) (string, string, error) {
	if g.merchant.BankAccount == "" {
		return "", "", ErrMissingAccount
	}
	code, ok := currencyCodes[currency]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}

	var b strings.Builder
	b.WriteString(field(tagPayloadFormat, payloadFormatValue))
	b.WriteString(field(tagPointOfInitiation, pointOfInitiationDyn))
	b.WriteString(field(tagMerchantAccount, field(subTagAccountID, g.merchant.BankAccount)))
	b.WriteString(field(tagMerchantCategory, merchantCategoryOther))
	b.WriteString(field(tagCurrency, code))
	b.WriteString(field(tagAmount, formatAmount(amount, currency)))
	b.WriteString(field(tagCountryCode, countryCodeKH))
	b.WriteString(field(tagMerchantName, truncate(g.merchant.Name, 25)))
	b.WriteString(field(tagMerchantCity, truncate(g.merchant.City, 15)))
	additional := g.additionalData(billNumber)
	if len(additional) > 99 {
		return "", "", fmt.Errorf("additional data template exceeds 99 characters (%d)", len(additional))
	}
	b.WriteString(field(tagAdditionalData, additional))

	// CRC is computed over the payload including its own tag and length.
	payload := b.String() + tagCRC + "04"
	payload += fmt.Sprintf("%04X", crc16(payload))

	sum := md5.Sum([]byte(payload))
	return payload, hex.EncodeToString(sum[:]), nil
}

func (g *Generator) additionalData(billNumber string) string {
	var b strings.Builder
	b.WriteString(field(subTagBillNumber, truncate(billNumber, 25)))
	if g.merchant.Phone != "" {
		b.WriteString(field(subTagMobileNumber, truncate(g.merchant.Phone, 25)))
	}
	if g.merchant.StoreLabel != "" {
		b.WriteString(field(subTagStoreLabel, truncate(g.merchant.StoreLabel, 25)))
	}
	if g.merchant.Terminal != "" {
		b.WriteString(field(subTagTerminalLabel, truncate(g.merchant.Terminal, 25)))
	}
	return b.String()
}

// field encodes one TLV element: two-digit tag, two-digit length, value.
func field(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// formatAmount renders the amount the way the scheme expects: KHR has no
// minor unit, USD carries two decimals.
func formatAmount(amount float64, currency string) string {
	if currency == "KHR" {
		return fmt.Sprintf("%.0f", amount)
	}
	return fmt.Sprintf("%.2f", amount)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// crc16 computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF) as required
// by EMVCo for the tag 63 checksum.
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range []byte(s) {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
