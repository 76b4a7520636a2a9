package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"strconv"
)

// ErrInvalidSecret is returned when the API secret is not valid base64 and
// therefore cannot key the HMAC.
var ErrInvalidSecret = errors.New("api secret is not valid base64")

// SignSpot computes the Spot API signature for a private request:
//
//	base64(HMAC-SHA512(path || SHA256(nonce || body), base64decode(secret)))
//
// path is the endpoint path (e.g. "/0/private/Balance") and body is the
// URL-encoded POST body, which must already contain the nonce field.
// The result goes in the API-Sign header alongside the API-Key header.
func SignSpot(path string, nonce uint64, body string, creds Credentials) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(creds.Secret())
	if err != nil {
		return "", ErrInvalidSecret
	}

	digest := sha256.New()
	digest.Write([]byte(strconv.FormatUint(nonce, 10)))
	digest.Write([]byte(body))

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest.Sum(nil))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// SignFutures computes the Futures API signature, which concatenates in a
// different order than Spot:
//
//	base64(HMAC-SHA512(SHA256(body || nonce || path), base64decode(secret)))
//
// body is the URL-encoded POST body, or the query string for GET requests.
// The result goes in the Authent header alongside APIKey and Nonce.
func SignFutures(path string, nonce uint64, body string, creds Credentials) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(creds.Secret())
	if err != nil {
		return "", ErrInvalidSecret
	}

	digest := sha256.New()
	digest.Write([]byte(body))
	digest.Write([]byte(strconv.FormatUint(nonce, 10)))
	digest.Write([]byte(path))

	mac := hmac.New(sha512.New, secret)
	mac.Write(digest.Sum(nil))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
