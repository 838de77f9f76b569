package models

// RecipientRole is why a party hears about a settled payment.
type RecipientRole string

const (
	RecipientStudent        RecipientRole = "student"
	RecipientUniversity     RecipientRole = "university"
	RecipientSeller         RecipientRole = "seller"
	RecipientAffiliateAdmin RecipientRole = "affiliate_admin"
	RecipientAdmin          RecipientRole = "admin"
)

type Recipient struct {
	Role   RecipientRole `json:"role"`
	UserID uint          `json:"user_id"`
	Email  string        `json:"email"`
	Name   string        `json:"name"`
}
