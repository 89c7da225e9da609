package pastebin

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Visibility is the api_paste_private value of a paste.
type Visibility int

const (
	Public   Visibility = 0
	Unlisted Visibility = 1
	Private  Visibility = 2
)

// ParseVisibility accepts "public", "unlisted" or "private".
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "public":
		return Public, nil
	case "unlisted":
		return Unlisted, nil
	case "private":
		return Private, nil
	default:
		return 0, fmt.Errorf("unknown visibility %q", s)
	}
}

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Unlisted:
		return "unlisted"
	case Private:
		return "private"
	default:
		return "Visibility(" + strconv.Itoa(int(v)) + ")"
	}
}

// Expiry is an api_paste_expire_date value.
type Expiry string

const (
	ExpireNever     Expiry = "N"
	Expire10Minutes Expiry = "10M"
	Expire1Hour     Expiry = "1H"
	Expire1Day      Expiry = "1D"
	Expire1Week     Expiry = "1W"
	Expire2Weeks    Expiry = "2W"
	Expire1Month    Expiry = "1M"
	Expire6Months   Expiry = "6M"
	Expire1Year     Expiry = "1Y"
)

var validExpiries = map[Expiry]bool{
	ExpireNever: true, Expire10Minutes: true, Expire1Hour: true,
	Expire1Day: true, Expire1Week: true, Expire2Weeks: true,
	Expire1Month: true, Expire6Months: true, Expire1Year: true,
}

// MaxResultsLimit is the largest api_results_limit Pastebin accepts.
const MaxResultsLimit = 1000

const noPastesFound = "No pastes found."

// ErrInvalidPaste is returned when a paste fails local validation.
var ErrInvalidPaste = errors.New("invalid paste")

// NewPaste describes a paste to create.
type NewPaste struct {
	Code       string     `json:"code"`
	Name       string     `json:"name,omitempty"`
	Format     string     `json:"format,omitempty"`
	Visibility Visibility `json:"visibility"`
	Expire     Expiry     `json:"expire,omitempty"`
	FolderKey  string     `json:"folder,omitempty"`
}

func (p NewPaste) validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidPaste)
	}
	if p.Visibility < Public || p.Visibility > Private {
		return fmt.Errorf("%w: visibility %d out of range", ErrInvalidPaste, int(p.Visibility))
	}
	if p.Expire != "" && !validExpiries[p.Expire] {
		return fmt.Errorf("%w: unknown expiry %q", ErrInvalidPaste, p.Expire)
	}
	return nil
}

// Paste is one entry of a paste listing.
type Paste struct {
	Key         string `xml:"paste_key" json:"key"`
	Date        int64  `xml:"paste_date" json:"date"`
	Title       string `xml:"paste_title" json:"title"`
	Size        int64  `xml:"paste_size" json:"size"`
	ExpireDate  int64  `xml:"paste_expire_date" json:"expire_date"`
	Private     int    `xml:"paste_private" json:"private"`
	FormatLong  string `xml:"paste_format_long" json:"format_long"`
	FormatShort string `xml:"paste_format_short" json:"format_short"`
	URL         string `xml:"paste_url" json:"url"`
	Hits        int64  `xml:"paste_hits" json:"hits"`
}

// User is the account returned by api_option=userdetails.
type User struct {
	Name        string `xml:"user_name" json:"name"`
	FormatShort string `xml:"user_format_short" json:"format_short"`
	Expiration  string `xml:"user_expiration" json:"expiration"`
	AvatarURL   string `xml:"user_avatar_url" json:"avatar_url"`
	Private     int    `xml:"user_private" json:"private"`
	Website     string `xml:"user_website" json:"website"`
	Email       string `xml:"user_email" json:"email"`
	Location    string `xml:"user_location" json:"location"`
	AccountType int    `xml:"user_account_type" json:"account_type"`
}

// CreatePaste uploads a paste and returns its URL.
func (a *Agent) CreatePaste(ctx context.Context, p NewPaste) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("api_option", "paste")
	params.Set("api_paste_code", p.Code)
	params.Set("api_paste_private", strconv.Itoa(int(p.Visibility)))
	if p.Name != "" {
		params.Set("api_paste_name", p.Name)
	}
	if p.Format != "" {
		params.Set("api_paste_format", p.Format)
	}
	if p.Expire != "" {
		params.Set("api_paste_expire_date", string(p.Expire))
	}
	if p.FolderKey != "" {
		params.Set("api_folder_key", p.FolderKey)
	}

	body, err := a.Call(ctx, a.apiURL, http.MethodPost, params)
	if err != nil {
		return "", fmt.Errorf("creating paste: %w", err)
	}
	return strings.TrimSpace(body), nil
}

// ListPastes returns the session user's pastes. A limit of 0 uses the
// provider default.
func (a *Agent) ListPastes(ctx context.Context, limit int) ([]Paste, error) {
	if limit < 0 || limit > MaxResultsLimit {
		return nil, fmt.Errorf("results limit must be between 1 and %d", MaxResultsLimit)
	}

	params := url.Values{}
	params.Set("api_option", "list")
	if limit > 0 {
		params.Set("api_results_limit", strconv.Itoa(limit))
	}

	body, err := a.Call(ctx, a.apiURL, http.MethodPost, params)
	if err != nil {
		return nil, fmt.Errorf("listing pastes: %w", err)
	}
	return parsePasteList(body)
}

// parsePasteList decodes the root-less <paste> fragments of a list response.
func parsePasteList(body string) ([]Paste, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == noPastesFound {
		return []Paste{}, nil
	}

	var list struct {
		Pastes []Paste `xml:"paste"`
	}
	if err := xml.Unmarshal([]byte("<pastes>"+body+"</pastes>"), &list); err != nil {
		return nil, fmt.Errorf("decoding paste list: %w", err)
	}
	if list.Pastes == nil {
		list.Pastes = []Paste{}
	}
	return list.Pastes, nil
}

// DeletePaste removes one of the session user's pastes.
func (a *Agent) DeletePaste(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("deleting paste: key is required")
	}

	params := url.Values{}
	params.Set("api_option", "delete")
	params.Set("api_paste_key", key)

	if _, err := a.Call(ctx, a.apiURL, http.MethodPost, params); err != nil {
		return fmt.Errorf("deleting paste %s: %w", key, err)
	}
	return nil
}

// RawPaste returns the text of one of the session user's pastes.
func (a *Agent) RawPaste(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", errors.New("fetching raw paste: key is required")
	}

	params := url.Values{}
	params.Set("api_option", "show_paste")
	params.Set("api_paste_key", key)

	body, err := a.Call(ctx, a.rawURL, http.MethodPost, params)
	if err != nil {
		return "", fmt.Errorf("fetching raw paste %s: %w", key, err)
	}
	return body, nil
}

// UserDetails returns the account behind the session key.
func (a *Agent) UserDetails(ctx context.Context) (*User, error) {
	params := url.Values{}
	params.Set("api_option", "userdetails")

	body, err := a.Call(ctx, a.apiURL, http.MethodPost, params)
	if err != nil {
		return nil, fmt.Errorf("fetching user details: %w", err)
	}

	var u User
	if err := xml.Unmarshal([]byte(strings.TrimSpace(body)), &u); err != nil {
		return nil, fmt.Errorf("decoding user details: %w", err)
	}
	return &u, nil
}
