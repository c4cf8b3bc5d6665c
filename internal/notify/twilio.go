package notify

import (
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioChannel sends messages through the Twilio REST API. The same
// implementation backs both SMS and WhatsApp; WhatsApp destinations only
// differ by an address prefix.
type TwilioChannel struct {
	client   *twilio.RestClient
	from     string
	whatsapp bool
}

// NewSMSChannel returns the baseline SMS channel.
func NewSMSChannel(accountSID, authToken, from string) (*TwilioChannel, error) {
	return newTwilioChannel(accountSID, authToken, from, false)
}

// NewWhatsAppChannel returns the rich channel used for "+"-prefixed contacts.
func NewWhatsAppChannel(accountSID, authToken, from string) (*TwilioChannel, error) {
	return newTwilioChannel(accountSID, authToken, from, true)
}

func newTwilioChannel(accountSID, authToken, from string, whatsapp bool) (*TwilioChannel, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, ErrNotConfigured
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioChannel{client: client, from: from, whatsapp: whatsapp}, nil
}

func (c *TwilioChannel) Send(to, body string) (string, error) {
	from := c.from
	if c.whatsapp {
		to = "whatsapp:" + to
		from = "whatsapp:" + from
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}
