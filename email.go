package celauth

import "log"

// Mailer delivers a confirmation code to an address. Delivery is
// fire-and-forget: the registry records state before invoking the mailer and
// a delivery failure never rolls that state back, it only delays
// confirmation.
type Mailer interface {
	SendCode(code string, address string) error
}

// ConsoleMailer is a development implementation that logs codes to console.
type ConsoleMailer struct{}

func (c *ConsoleMailer) SendCode(code string, address string) error {
	log.Printf("\n=== EMAIL: Confirmation code ===")
	log.Printf("To: %s", address)
	log.Printf("Subject: Confirm your email address")
	log.Printf("Body: Your confirmation code is: %s", code)
	log.Printf("================================\n")
	return nil
}
