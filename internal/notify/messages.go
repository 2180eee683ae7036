package notify

// Kind names a notification template.
type Kind string

const (
	KindWelcome       Kind = "welcome"
	KindPasswordReset Kind = "password-reset"
)

// Message is a registered template pair.  Both fields may use placeholders;
// the rendered subject is also exposed to the body as {{ subject }}.
type Message struct {
	Subject string
	Body    string
}

const layoutHead = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ subject }}</title></head>
<body style="font-family: sans-serif; font-size: 14px;">
`

const layoutFoot = `<p>Natours Team</p>
</body>
</html>
`

// DefaultMessages returns the built-in registry.  A fresh map is returned
// on every call so callers may extend it.
func DefaultMessages() map[Kind]Message {
	return map[Kind]Message{
		KindWelcome: {
			Subject: "Welcome to the Natours Family!",
			Body: layoutHead + `<p>Hi {{ user.firstName }},</p>
<p>Welcome to Natours, we're glad to have you 🎉🙏</p>
<p>We're all a big family here, so make sure to upload your user photo so we get to know you a bit better!</p>
<p><a href="{{ url }}">Upload user photo</a></p>
<p>If you need any help, please don't hesitate to contact me!</p>
` + layoutFoot,
		},
		KindPasswordReset: {
			Subject: "Your password reset token (valid for only {{ expiresIn }})",
			Body: layoutHead + `<p>Hi {{ user.firstName }},</p>
<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to the link below.</p>
<p><a href="{{ url }}">Reset your password</a></p>
<p>If you didn't forget your password, please ignore this email!</p>
` + layoutFoot,
		},
	}
}
