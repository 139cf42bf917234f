package notification

// Kind enumerates the hiring pipeline notifications this service produces.
type Kind string

const (
	KindApplicationReceived Kind = "APPLICATION_RECEIVED"
	KindInterviewScheduled  Kind = "INTERVIEW_SCHEDULED"
	KindOfferExtended       Kind = "OFFER_EXTENDED"
)

// validKinds is the set of all recognized notification kinds.
var validKinds = map[Kind]bool{
	KindApplicationReceived: true,
	KindInterviewScheduled:  true,
	KindOfferExtended:       true,
}

// IsValidKind checks whether a notification kind is recognized.
func IsValidKind(k Kind) bool {
	return validKinds[k]
}

// ChannelKind identifies a delivery channel.
type ChannelKind string

const (
	ChannelConsole ChannelKind = "console"
	ChannelEmail   ChannelKind = "email"
	ChannelSMS     ChannelKind = "sms"  // future
	ChannelPush    ChannelKind = "push" // future
)

// RecipientRole is the category of person receiving a notification.
type RecipientRole string

const (
	RoleCandidate     RecipientRole = "CANDIDATE"
	RoleHiringManager RecipientRole = "HIRING_MANAGER"
	RoleRecruiter     RecipientRole = "RECRUITER"
)

// Payload is the channel-agnostic message handed to every delivery channel.
type Payload struct {
	NotificationID string
	RecipientID    string
	RecipientEmail string
	Subject        string
	Content        string
	HTMLContent    string
	Metadata       map[string]any
}
