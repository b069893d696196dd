package models

import "time"

// VerificationStatus is the admin review state of an NGO.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// Valid reports whether s is a known verification status.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Category is a named kind of goods, e.g. "Food" or "Books".
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// DonorProfile holds donor-only details.
type DonorProfile struct {
	UserID      string      `json:"user_id"`
	FullName    string      `json:"full_name"`
	PhoneNumber string      `json:"phone_number"`
	Pincode     string      `json:"pincode"`
	Location    *Coordinate `json:"location,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NGOProfile holds NGO-only details, including admin verification state.
type NGOProfile struct {
	UserID                string             `json:"user_id"`
	Name                  string             `json:"ngo_name"`
	Address               string             `json:"address"`
	MissionStatement      string             `json:"mission_statement"`
	DocumentRef           string             `json:"document_ref,omitempty"`
	VerificationStatus    VerificationStatus `json:"verification_status"`
	VerificationEmailSent bool               `json:"-"`
	Location              *Coordinate        `json:"location,omitempty"`
	CategoryIDs           []string           `json:"accepted_category_ids"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// Verified reports whether the NGO passed admin review.
func (p *NGOProfile) Verified() bool {
	return p != nil && p.VerificationStatus == VerificationVerified
}

// Accepts reports whether the NGO accepts goods of the given category.
func (p *NGOProfile) Accepts(categoryID string) bool {
	if p == nil {
		return false
	}
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// NGO pairs an NGO account with its profile and contact email.
type NGO struct {
	Email   string     `json:"email"`
	Profile NGOProfile `json:"profile"`
}

// Need is a request for goods posted by a verified NGO.
type Need struct {
	ID          string    `json:"id"`
	NGOID       string    `json:"ngo_id"`
	NGOName     string    `json:"ngo_name,omitempty"`
	CategoryID  string    `json:"category_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// OfferStatus represents the lifecycle state of an offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "PENDING"
	OfferAccepted OfferStatus = "ACCEPTED"
	OfferRejected OfferStatus = "REJECTED"
)

// Terminal reports whether no further transition is possible.
func (s OfferStatus) Terminal() bool {
	return s == OfferAccepted || s == OfferRejected
}

// DeliveryMode says how goods reach the NGO.
type DeliveryMode string

const (
	DeliveryPickup  DeliveryMode = "PICKUP"
	DeliveryDropOff DeliveryMode = "DROP_OFF"
)

// Valid reports whether m is a known delivery mode.
func (m DeliveryMode) Valid() bool {
	return m == DeliveryPickup || m == DeliveryDropOff
}

// OfferFlow records how an offer was created. Only offers proposed to a
// matched NGO are held to the NGO's accepted categories.
type OfferFlow string

const (
	FlowMatched OfferFlow = "MATCHED"
	FlowDirect  OfferFlow = "DIRECT"
	FlowNeed    OfferFlow = "NEED"
)

// Offer is a donor's proposal to give goods to one NGO.
type Offer struct {
	ID          string       `json:"id"`
	DonorID     string       `json:"donor_id"`
	NGOID       string       `json:"ngo_id"`
	NeedID      string       `json:"need_id,omitempty"`
	CategoryID  string       `json:"category_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Delivery    DeliveryMode `json:"delivery_type"`
	Status      OfferStatus  `json:"status"`
	Flow        OfferFlow    `json:"flow"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Conversation is the message thread opened when an offer is accepted.
type Conversation struct {
	ID           string    `json:"id"`
	OfferID      string    `json:"offer_id"`
	OfferTitle   string    `json:"offer_title,omitempty"`
	Participants []string  `json:"participants"`
	Unread       int       `json:"unread"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Message is a single chat line. Only its read flag ever changes.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Read           bool      `json:"is_read"`
	CreatedAt      time.Time `json:"timestamp"`
}
