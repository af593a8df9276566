package auth

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

// buildInitData assembles initData with a valid hash for the given
// auth_date.
func buildInitData(botToken string, authDate time.Time, extra map[string]string) string {
	params := url.Values{}
	params.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	for k, v := range extra {
		params.Set(k, v)
	}

	var pairs []string
	for key, values := range params {
		for _, v := range values {
			pairs = append(pairs, fmt.Sprintf("%s=%s", key, v))
		}
	}
	sort.Strings(pairs)
	dataCheckString := strings.Join(pairs, "\n")

	secretKey := hmacSHA256([]byte("WebAppData"), []byte(botToken))
	hash := hmacSHA256(secretKey, []byte(dataCheckString))
	params.Set("hash", hex.EncodeToString(hash))

	return params.Encode()
}

func TestValidateTelegramWebAppData(t *testing.T) {
	const botToken = "test-bot-token-12345"

	t.Run("valid hash", func(t *testing.T) {
		initData := buildInitData(botToken, time.Now().Add(-30*time.Second), map[string]string{
			"query_id": "test_query_id",
			"user":     `{"id":123456,"first_name":"Test","username":"testuser"}`,
		})

		result, err := ValidateTelegramWebAppData(initData, botToken, 5*time.Minute)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if result.Get("query_id") != "test_query_id" {
			t.Errorf("expected query_id=test_query_id, got %s", result.Get("query_id"))
		}
	})

	t.Run("expired auth_date", func(t *testing.T) {
		initData := buildInitData(botToken, time.Now().Add(-10*time.Minute), map[string]string{
			"user": `{"id":123456}`,
		})

		_, err := ValidateTelegramWebAppData(initData, botToken, 5*time.Minute)
		if err == nil {
			t.Fatal("expected error for expired initData")
		}
		if !strings.Contains(err.Error(), "expired") {
			t.Errorf("expected 'expired' in error, got: %s", err.Error())
		}
	})

	t.Run("future auth_date", func(t *testing.T) {
		initData := buildInitData(botToken, time.Now().Add(5*time.Minute), map[string]string{
			"user": `{"id":123456}`,
		})

		_, err := ValidateTelegramWebAppData(initData, botToken, 5*time.Minute)
		if err == nil {
			t.Fatal("expected error for future auth_date")
		}
		if !strings.Contains(err.Error(), "future") {
			t.Errorf("expected 'future' in error, got: %s", err.Error())
		}
	})

	t.Run("zero maxAge uses default TTL", func(t *testing.T) {
		initData := buildInitData(botToken, time.Now().Add(-10*time.Second), map[string]string{
			"user": `{"id":123456}`,
		})

		if _, err := ValidateTelegramWebAppData(initData, botToken, 0); err != nil {
			t.Fatalf("expected no error with default maxAge, got: %v", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		initData := buildInitData(botToken, time.Now(), map[string]string{
			"user": `{"id":123456}`,
		})
		tampered := strings.Replace(initData, "123456", "999999", 1)

		if _, err := ValidateTelegramWebAppData(tampered, botToken, 5*time.Minute); err == nil {
			t.Fatal("expected error for tampered initData")
		}
	})

	t.Run("invalid hash", func(t *testing.T) {
		params := url.Values{}
		params.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))
		params.Set("user", `{"id":123456}`)
		params.Set("hash", "invalidhash")

		if _, err := ValidateTelegramWebAppData(params.Encode(), botToken, 5*time.Minute); err == nil {
			t.Fatal("expected error for invalid hash")
		}
	})

	t.Run("missing hash", func(t *testing.T) {
		params := url.Values{}
		params.Set("auth_date", strconv.FormatInt(time.Now().Unix(), 10))

		if _, err := ValidateTelegramWebAppData(params.Encode(), botToken, 5*time.Minute); err == nil {
			t.Fatal("expected error for missing hash")
		}
	})

	t.Run("missing auth_date", func(t *testing.T) {
		params := url.Values{}
		params.Set("user", `{"id":123456}`)
		params.Set("hash", "somehash")

		if _, err := ValidateTelegramWebAppData(params.Encode(), botToken, 5*time.Minute); err == nil {
			t.Fatal("expected error for missing auth_date")
		}
	})
}
