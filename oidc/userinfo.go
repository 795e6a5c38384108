package oidc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Vendor claim names of the ssoFACT user endpoint.
const (
	VendorClaimID          = "id"
	VendorClaimEmail       = "email"
	VendorClaimConfirmed   = "confirmed"
	VendorClaimLastChanged = "lastchgdate"
)

// UserInfo is the canonical set of claims for a user authenticated by
// ssoFACT. It's fetched fresh for every login and never persisted here.
type UserInfo struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email,omitempty"`
	EmailVerified     bool   `json:"email_verified"`
	UpdatedAt         string `json:"updated_at,omitempty"`

	// Raw holds every vendor field, including the remapped ones.
	Raw map[string]interface{} `json:"-"`
}

// DecodeClaims decodes a JSON object of vendor claims. Numbers are kept as
// json.Number so large numeric ids survive.
func DecodeClaims(b []byte) (map[string]interface{}, error) {
	const op = "DecodeClaims"
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return raw, nil
}

// MapUserInfo remaps the vendor's user fields onto the canonical claims:
//
//	sub                <- id
//	preferred_username <- email
//	email              <- email
//	email_verified     <- confirmed
//	updated_at         <- lastchgdate
func MapUserInfo(raw map[string]interface{}) (*UserInfo, error) {
	const op = "MapUserInfo"
	if raw == nil {
		return nil, fmt.Errorf("%s: user info is nil: %w", op, ErrNilParameter)
	}
	sub, err := claimString(raw[VendorClaimID])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %q: %v: %w", op, VendorClaimID, err, ErrInvalidParameter)
	}
	if sub == "" {
		return nil, fmt.Errorf("%s: user info is missing %q: %w", op, VendorClaimID, ErrInvalidParameter)
	}
	email, err := claimString(raw[VendorClaimEmail])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %q: %v: %w", op, VendorClaimEmail, err, ErrInvalidParameter)
	}
	verified, err := claimBool(raw[VendorClaimConfirmed])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %q: %v: %w", op, VendorClaimConfirmed, err, ErrInvalidParameter)
	}
	updated, err := claimString(raw[VendorClaimLastChanged])
	if err != nil {
		return nil, fmt.Errorf("%s: invalid %q: %v: %w", op, VendorClaimLastChanged, err, ErrInvalidParameter)
	}
	return &UserInfo{
		Subject:           sub,
		PreferredUsername: email,
		Email:             email,
		EmailVerified:     verified,
		UpdatedAt:         updated,
		Raw:               raw,
	}, nil
}

func claimString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

func claimBool(v interface{}) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return false, err
		}
		return f != 0, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return false, nil
		}
		return strconv.ParseBool(strings.TrimSpace(t))
	default:
		return false, fmt.Errorf("unexpected type %T", v)
	}
}
