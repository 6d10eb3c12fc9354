package main

import (
	"fmt"
	"log"
	"net/mail"
	"os"

	"github.com/banquethq/venue-crm/utils"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/mailer"
)

// configurePocketBaseSMTP configures PocketBase's SMTP settings from the
// environment. SendGrid-compatible defaults; skipped entirely without a
// password so local development never tries to send.
func configurePocketBaseSMTP(app *pocketbase.PocketBase) {
	smtpPassword := os.Getenv("SMTP_PASSWORD")
	if smtpPassword == "" {
		log.Println("[SMTP] No SMTP_PASSWORD configured, skipping SMTP setup")
		return
	}

	host := os.Getenv("SMTP_HOST")
	if host == "" {
		host = "smtp.sendgrid.net"
	}
	senderAddress := os.Getenv("SMTP_SENDER_ADDRESS")
	if senderAddress == "" {
		senderAddress = "noreply@banquethq.com"
	}
	senderName := os.Getenv("SMTP_SENDER_NAME")
	if senderName == "" {
		senderName = "BanquetHQ"
	}

	settings := app.Settings()

	if settings.SMTP.Enabled && settings.SMTP.Host == host && settings.Meta.SenderAddress == senderAddress {
		log.Println("[SMTP] Already configured correctly")
		return
	}

	settings.SMTP.Enabled = true
	settings.SMTP.Host = host
	settings.SMTP.Port = 587
	settings.SMTP.Username = "apikey"
	settings.SMTP.Password = smtpPassword
	settings.SMTP.TLS = false

	settings.Meta.SenderName = senderName
	settings.Meta.SenderAddress = senderAddress

	if err := app.Save(settings); err != nil {
		log.Printf("[SMTP] Failed to save settings: %v", err)
	} else {
		log.Println("[SMTP] Settings saved successfully")
	}
}

// wrapEmailHTML wraps content in the shared notification template
func wrapEmailHTML(content string) string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; line-height: 1.4; color: #202020; font-size: 16px; margin: 0; padding: 0; background: #f4f4f4;">

    <div style="max-width: 640px; margin: auto; padding: 24px;">
        <div style="background: #ffffff; padding: 24px; border-radius: 8px;">
` + content + `
        </div>
        <p style="text-align: center; font-size: 12px; color: #9a9a9a; margin-top: 16px;">
            You are receiving this because lead notifications are enabled for your venue.
        </p>
    </div>

</body>
</html>`
}

// sendNewLeadNotification emails the tenant's admins when a lead lands.
// Called asynchronously from the record hook; failures are logged, never
// surfaced to the submitter.
func sendNewLeadNotification(app *pocketbase.PocketBase, lead *core.Record) {
	tenant := lead.GetString("tenant")
	if tenant == "" {
		return
	}

	admins, err := app.FindRecordsByFilter(utils.CollectionUsers,
		"tenant = {:tenant} && role = 'admin'", "", 0, 0, dbx.Params{"tenant": tenant})
	if err != nil || len(admins) == 0 {
		log.Printf("[Email] No admins to notify for tenant %s", tenant)
		return
	}

	detail := func(label, value string) string {
		if value == "" {
			return ""
		}
		return fmt.Sprintf(`
            <tr>
                <td style="padding: 6px 12px 6px 0; color: #9a9a9a; font-size: 14px;">%s</td>
                <td style="padding: 6px 0; color: #202020; font-size: 14px;">%s</td>
            </tr>`, label, value)
	}

	content := fmt.Sprintf(`
            <p style="color: #4a4a4a; font-size: 16px; margin: 0 0 16px 0;">A new enquiry just came in:</p>
            <h2 style="color: #202020; font-size: 20px; margin: 0 0 16px 0;">%s</h2>
            <table style="border-collapse: collapse;">%s%s%s%s%s</table>
`,
		lead.GetString("name"),
		detail("Email", lead.GetString("email")),
		detail("Phone", lead.GetString("phone")),
		detail("Event type", lead.GetString("event_type")),
		detail("Preferred date", lead.GetString("event_date")),
		detail("Source", lead.GetString("source")),
	)

	recipients := make([]mail.Address, 0, len(admins))
	for _, admin := range admins {
		if addr := admin.Email(); addr != "" {
			recipients = append(recipients, mail.Address{Address: addr, Name: admin.GetString("name")})
		}
	}
	if len(recipients) == 0 {
		return
	}

	msg := &mailer.Message{
		From:    mail.Address{Address: app.Settings().Meta.SenderAddress, Name: app.Settings().Meta.SenderName},
		To:      recipients,
		Subject: "New enquiry: " + lead.GetString("name"),
		HTML:    wrapEmailHTML(content),
	}

	if err := app.NewMailClient().Send(msg); err != nil {
		log.Printf("[Email] Failed to send lead notification: %v", err)
		return
	}

	log.Printf("[Email] New lead notification sent to %d admin(s)", len(recipients))
}
