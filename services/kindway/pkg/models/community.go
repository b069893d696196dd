package models

import "time"

// Event is a volunteering event hosted by a verified NGO.
type Event struct {
	ID          string    `json:"id"`
	NGOID       string    `json:"ngo_id"`
	NGOName     string    `json:"ngo_name,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Date        time.Time `json:"event_date"`
	Volunteers  int       `json:"volunteers"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Story is a success story submitted by the public.
type Story struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	City        string    `json:"city"`
	Content     string    `json:"story_content"`
	Featured    bool      `json:"is_featured"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// ContactMessage is a contact form submission forwarded to the site inbox.
type ContactMessage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	Sent        bool      `json:"sent"`
	SubmittedAt time.Time `json:"submitted_at"`
}
