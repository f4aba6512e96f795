package service

import (
	"bytes"
	"html/template"
	"time"
)

var emailTemplates = template.Must(template.New("email").Parse(`
{{define "otp"}}<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">U-Laundry Verification</h2>
  <p style="color: #555; font-size: 16px;">{{.Intro}}</p>
  <div style="background: #f4f4f4; padding: 15px 25px; border-radius: 8px; text-align: center; margin: 20px 0;">
    <span style="font-size: 32px; font-weight: bold; letter-spacing: 8px; color: #333;">{{.Code}}</span>
  </div>
  <p style="color: #999; font-size: 14px;">This code expires in {{.Minutes}} minutes. Do not share it with anyone.</p>
</div>{{end}}
{{define "reset"}}<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto; padding: 20px;">
  <p>We received a request to reset your password.</p>
  <p style="text-align: center;"><a href="{{.URL}}" style="background-color: #4CAF50; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Reset Your Password</a></p>
  <p>If the button does not work, open this link: <a href="{{.URL}}">{{.URL}}</a></p>
  <p>If you did not request a reset, ignore this message. The link is valid for {{.Minutes}} minutes.</p>
</div>{{end}}
{{define "order"}}<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Order #{{.OrderID}}</h2>
  <p>Hello {{.Name}}, your order is now <strong>{{.Status}}</strong>.</p>
  <p>Items: {{.TotalClothes}} &middot; Amount: {{.Amount}} {{.Currency}}</p>
</div>{{end}}
`))

func renderEmail(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func otpEmail(intro, code string, ttl time.Duration) (string, error) {
	return renderEmail("otp", map[string]interface{}{
		"Intro":   intro,
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
}

func resetPasswordEmail(url string, ttl time.Duration) (string, error) {
	return renderEmail("reset", map[string]interface{}{
		"URL":     url,
		"Minutes": int(ttl.Minutes()),
	})
}

// OrderEmailData feeds the order status template.
type OrderEmailData struct {
	OrderID      uint
	Name         string
	Status       string
	TotalClothes int
	Amount       string
	Currency     string
}

func OrderStatusEmail(data OrderEmailData) (string, error) {
	return renderEmail("order", data)
}
