package email

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

func TestDeliveryAddress(t *testing.T) {
	testCases := map[string]string{
		"a+tag@x.com":    "a@x.com",
		"a@x.com":        "a@x.com",
		"a+b+c@x.com":    "a@x.com",
		"plain":          "plain",
		"a@x.com+suffix": "a@x.com+suffix",
	}
	for in, want := range testCases {
		if got := DeliveryAddress(in); got != want {
			t.Errorf("DeliveryAddress(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLink(t *testing.T) {
	got := Link("https://app.example.com/", KindEmailVerification, "a+tag@x.com", "tok123")
	want := "https://app.example.com/auth/verify?type=email-verification&email=a%2Btag@x.com&token=tok123"
	if got != want {
		t.Errorf("Link = %q, want %q", got, want)
	}
	got = Link("https://app.example.com", KindResetPassword, "a@x.com", "tok")
	if !strings.Contains(got, "type=reset-password") {
		t.Errorf("Link = %q, want reset-password type", got)
	}
}

func TestKindMessages(t *testing.T) {
	if KindEmailVerification.SentMessage() != "Verification email sent successfully" {
		t.Errorf("verification message = %q", KindEmailVerification.SentMessage())
	}
	if KindResetPassword.SentMessage() != "Reset password email sent successfully" {
		t.Errorf("reset message = %q", KindResetPassword.SentMessage())
	}
	if KindResetPassword.Subject() != "boilerplate Request to Reset Password" {
		t.Errorf("reset subject = %q", KindResetPassword.Subject())
	}
	if Kind("WELCOME").Valid() {
		t.Error("unknown kind should not be valid")
	}
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer("https://app.example.com", 10*time.Minute)
	msg, err := r.Render("a+tag@x.com", "tok123", KindEmailVerification, "alice")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.To != "a@x.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.HTML, "Hi alice,") {
		t.Error("HTML should greet the display name")
	}
	if !strings.Contains(msg.HTML, "email=a%2Btag@x.com&amp;token=tok123") {
		t.Errorf("HTML missing link: %s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "expires after 10 minutes") {
		t.Errorf("Text = %q", msg.Text)
	}

	if _, err := r.Render("a@x.com", "t", Kind("WELCOME"), ""); err == nil {
		t.Error("Render should reject unknown kind")
	}
}

func TestRenderer_EscapesDisplayName(t *testing.T) {
	r := NewRenderer("https://app.example.com", time.Hour)
	msg, err := r.Render("a@x.com", "t", KindResetPassword, "<script>")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("display name should be escaped")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESDispatcher_Send(t *testing.T) {
	client := &fakeSES{}
	d := newSESDispatcher(client, "no-reply@example.com", NewRenderer("https://app.example.com", 10*time.Minute), nil)

	res, err := d.Send(context.Background(), "a+tag@x.com", "tok", KindResetPassword, "alice")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Status || res.Message != "Reset password email sent successfully" {
		t.Errorf("result = %+v", res)
	}
	in := client.input
	if aws.ToString(in.FromEmailAddress) != "no-reply@example.com" {
		t.Errorf("from = %q", aws.ToString(in.FromEmailAddress))
	}
	if len(in.Destination.ToAddresses) != 1 || in.Destination.ToAddresses[0] != "a@x.com" {
		t.Errorf("to = %v", in.Destination.ToAddresses)
	}
	if aws.ToString(in.Content.Simple.Subject.Data) != "boilerplate Request to Reset Password" {
		t.Errorf("subject = %q", aws.ToString(in.Content.Simple.Subject.Data))
	}
}

func TestSESDispatcher_SendError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	d := newSESDispatcher(client, "no-reply@example.com", NewRenderer("https://app.example.com", time.Minute), nil)

	res, err := d.Send(context.Background(), "a@x.com", "tok", KindEmailVerification, "")
	if err == nil {
		t.Fatal("Send should return the SES error")
	}
	if res.Status {
		t.Error("Status should be false on failure")
	}
}

func TestNewSESDispatcher_RequiresSender(t *testing.T) {
	if _, err := NewSESDispatcher(context.Background(), "us-east-1", "", NewRenderer("", time.Minute), nil); !errors.Is(err, ErrSenderRequired) {
		t.Errorf("err = %v, want ErrSenderRequired", err)
	}
}

func TestLogDispatcher_Send(t *testing.T) {
	d := NewLogDispatcher(NewRenderer("https://app.example.com", time.Minute), nil)
	res, err := d.Send(context.Background(), "a@x.com", "tok", KindEmailVerification, "alice")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Status || res.Message != "Verification email sent successfully" {
		t.Errorf("result = %+v", res)
	}
}
