package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"texus-backend/models"

	"github.com/golang-jwt/jwt"
)

// ---- QR payload codec ----

// EncodeQRPayload obfuscates a ticket payload with a repeating XOR of the
// key and base64url-encodes it. Deters casual tampering only; a wrong key
// on decode yields garbage that fails JSON parsing.
func EncodeQRPayload(payload models.TicketPayload, key string) (string, error) {
	if key == "" {
		return "", errors.New("qr key is empty")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(xorBytes(raw, key)), nil
}

func DecodeQRPayload(encoded, key string) (models.TicketPayload, error) {
	var payload models.TicketPayload
	if key == "" {
		return payload, errors.New("qr key is empty")
	}
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return payload, fmt.Errorf("invalid qr encoding: %v", err)
	}
	if err := json.Unmarshal(xorBytes(raw, key), &payload); err != nil {
		return payload, fmt.Errorf("invalid qr payload: %v", err)
	}
	return payload, nil
}

func xorBytes(data []byte, key string) []byte {
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ key[i%len(key)]
	}
	return out
}

// ---- Payment intent token ----

// PaymentIntent is the registration handoff between the register endpoint
// and the checkout endpoint. It travels as a signed, short-lived token so
// the client cannot alter the amount or team on the way.
type PaymentIntent struct {
	UserID       int      `json:"user_id"`
	EventID      int      `json:"event_id"`
	Team         []string `json:"team"`
	Amount       int      `json:"amount"`
	ReferralCode string   `json:"referral_code,omitempty"`
	MusicalNight bool     `json:"musical_night,omitempty"`
	Phase        int      `json:"phase,omitempty"`
	OrderID      string   `json:"order_id"`
}

const intentTTL = 15 * time.Minute

func SignPaymentIntent(intent PaymentIntent) (string, error) {
	secret := os.Getenv("SECRET")
	if secret == "" {
		return "", errors.New("SECRET environment variable is not set")
	}

	claims := jwt.MapClaims{
		"iss":      "texus-payment",
		"user_id":  intent.UserID,
		"event_id": intent.EventID,
		"team":     intent.Team,
		"amount":   intent.Amount,
		"order_id": intent.OrderID,
		"exp":      time.Now().Add(intentTTL).Unix(),
		"iat":      time.Now().Unix(),
	}
	if intent.ReferralCode != "" {
		claims["referral_code"] = intent.ReferralCode
	}
	if intent.MusicalNight {
		claims["musical_night"] = true
		claims["phase"] = intent.Phase
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyPaymentIntent checks signature and expiry and requires the intent
// to belong to userID. Any failure is terminal for the checkout flow.
func VerifyPaymentIntent(tokenString string, userID int) (PaymentIntent, error) {
	var intent PaymentIntent

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("Unexpected signing method")
		}
		return []byte(os.Getenv("SECRET")), nil
	})
	if err != nil || !token.Valid {
		return intent, errors.New("invalid or expired payment intent")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["iss"] != "texus-payment" {
		return intent, errors.New("invalid payment intent claims")
	}

	uid, ok := claims["user_id"].(float64)
	if !ok || int(uid) != userID {
		return intent, errors.New("payment intent does not belong to this user")
	}
	intent.UserID = int(uid)

	eid, ok := claims["event_id"].(float64)
	if !ok {
		return intent, errors.New("payment intent missing event")
	}
	intent.EventID = int(eid)

	if amount, ok := claims["amount"].(float64); ok {
		intent.Amount = int(amount)
	}
	if orderID, ok := claims["order_id"].(string); ok {
		intent.OrderID = orderID
	}
	if code, ok := claims["referral_code"].(string); ok {
		intent.ReferralCode = code
	}
	if mn, ok := claims["musical_night"].(bool); ok {
		intent.MusicalNight = mn
	}
	if phase, ok := claims["phase"].(float64); ok {
		intent.Phase = int(phase)
	}
	if members, ok := claims["team"].([]interface{}); ok {
		for _, m := range members {
			if s, ok := m.(string); ok {
				intent.Team = append(intent.Team, s)
			}
		}
	}

	return intent, nil
}

// ---- Gateway request cipher ----

// EncryptGatewayRequest encrypts the merchant parameter string the way the
// hosted checkout requires: AES-128-CBC with an MD5-derived key, zero-based
// incrementing IV, PKCS7 padding, hex output. The scheme is fixed by the
// gateway, not chosen here.
func EncryptGatewayRequest(plainText, workingKey string) (string, error) {
	key := md5.Sum([]byte(workingKey))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	for i := range iv {
		iv[i] = byte(i)
	}

	padded := pkcs7Pad([]byte(plainText), aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	return hex.EncodeToString(encrypted), nil
}

func DecryptGatewayResponse(encResponse, workingKey string) (string, error) {
	key := md5.Sum([]byte(workingKey))

	raw, err := hex.DecodeString(encResponse)
	if err != nil {
		return "", fmt.Errorf("invalid gateway response encoding: %v", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", errors.New("invalid gateway response length")
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	for i := range iv {
		iv[i] = byte(i)
	}

	decrypted := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, raw)

	return string(pkcs7Unpad(decrypted)), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	for i := 0; i < padding; i++ {
		data = append(data, byte(padding))
	}
	return data
}

func pkcs7Unpad(data []byte) []byte {
	if len(data) == 0 {
		return data
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > len(data) {
		return data
	}
	return data[:len(data)-padding]
}
