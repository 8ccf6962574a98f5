package client

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"chatline/internal/api"
)

const minPasswordLen = 6

var (
	ErrEmptyInput    = errors.New("input required")
	ErrShortPassword = fmt.Errorf("password must be at least %d characters", minPasswordLen)
	ErrInvalidEmail  = errors.New("invalid email address")
)

// Prompter asks for credentials on an interactive terminal.
type Prompter struct {
	r   *bufio.Reader
	out *Printer
}

func NewPrompter(r io.Reader, out *Printer) *Prompter {
	if r == nil {
		r = os.Stdin
	}
	return &Prompter{r: bufio.NewReader(r), out: out}
}

func (p *Prompter) ask(label string) string {
	p.out.printf("  %s%s:%s ", ColorBold, label, ColorReset)
	line, _ := p.r.ReadString('\n')
	return strings.TrimSpace(line)
}

// Login asks for email and password.
func (p *Prompter) Login() (api.LoginRequest, error) {
	p.out.Step("Log in")
	email := p.ask("Email")
	password := p.ask("Password")
	p.out.printf("\n")

	if err := validateEmail(email); err != nil {
		return api.LoginRequest{}, err
	}
	if password == "" {
		return api.LoginRequest{}, fmt.Errorf("password: %w", ErrEmptyInput)
	}
	return api.LoginRequest{Email: email, Password: password}, nil
}

// Signup asks for the new account's name, email and password.
func (p *Prompter) Signup() (api.SignupRequest, error) {
	p.out.Step("Create account")
	name := p.ask("Full name")
	email := p.ask("Email")
	p.out.Hint(fmt.Sprintf("min %d chars", minPasswordLen))
	password := p.ask("Password")
	p.out.printf("\n")

	if name == "" {
		return api.SignupRequest{}, fmt.Errorf("full name: %w", ErrEmptyInput)
	}
	if err := validateEmail(email); err != nil {
		return api.SignupRequest{}, err
	}
	if len(password) < minPasswordLen {
		return api.SignupRequest{}, ErrShortPassword
	}
	return api.SignupRequest{FullName: name, Email: email, Password: password}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email: %w", ErrEmptyInput)
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || !strings.Contains(domain, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// ProfilePicture turns a local image into a data URL; URLs are passed through.
func ProfilePicture(src string) (api.ProfileUpdate, error) {
	if src == "" {
		return api.ProfileUpdate{}, fmt.Errorf("image: %w", ErrEmptyInput)
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "data:") {
		return api.ProfileUpdate{ProfilePic: src}, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return api.ProfileUpdate{}, fmt.Errorf("failed to read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return api.ProfileUpdate{}, fmt.Errorf("%s is not an image (%s)", src, mime)
	}
	return api.ProfileUpdate{
		ProfilePic: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}
