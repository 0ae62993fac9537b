package store

import "time"

// Student is a recipient record, externally owned and merely consumed and
// partially updated (emails[campaignString]) by the agent.
type Student struct {
	ID              string                    `json:"id" dynamodbav:"id"`
	Email           string                    `json:"email" dynamodbav:"email"`
	First           string                    `json:"first" dynamodbav:"first"`
	Last            string                    `json:"last" dynamodbav:"last"`
	Country         string                    `json:"country" dynamodbav:"country"`
	WrittenLangPref string                    `json:"writtenLangPref" dynamodbav:"writtenLangPref"`
	Unsubscribe     bool                      `json:"unsubscribe" dynamodbav:"unsubscribe"`
	Emails          map[string]string         `json:"emails" dynamodbav:"emails"`
	Programs        map[string]ProgramState   `json:"programs" dynamodbav:"programs"`
	Practice        map[string]bool           `json:"practice" dynamodbav:"practice"`
}

// ProgramState is per-event program state on a Student.
type ProgramState struct {
	Join            bool                        `json:"join" dynamodbav:"join"`
	Accepted        bool                        `json:"accepted" dynamodbav:"accepted"`
	Withdrawn       bool                        `json:"withdrawn" dynamodbav:"withdrawn"`
	Oath            bool                        `json:"oath" dynamodbav:"oath"`
	Attended        bool                        `json:"attended" dynamodbav:"attended"`
	ManualInclude   bool                        `json:"manualInclude" dynamodbav:"manualInclude"`
	Eligible        bool                        `json:"eligible" dynamodbav:"eligible"`
	Test            bool                        `json:"test" dynamodbav:"test"`
	LimitFee        float64                     `json:"limitFee" dynamodbav:"limitFee"`
	WhichRetreats   map[string]bool             `json:"whichRetreats" dynamodbav:"whichRetreats"`
	OfferingHistory map[string]OfferingHistory  `json:"offeringHistory" dynamodbav:"offeringHistory"`
}

// OfferingHistory is per-sub-event offering state.
type OfferingHistory struct {
	OfferingSKU    string                         `json:"offeringSKU" dynamodbav:"offeringSKU"`
	OfferingIntent bool                           `json:"offeringIntent" dynamodbav:"offeringIntent"`
	OfferingTotal  float64                        `json:"offeringTotal" dynamodbav:"offeringTotal"`
	Installments   map[string]InstallmentHistory  `json:"installments" dynamodbav:"installments"`
}

// InstallmentHistory is one installment entry within an OfferingHistory.
type InstallmentHistory struct {
	OfferingAmount float64 `json:"offeringAmount" dynamodbav:"offeringAmount"`
	OfferingIntent bool    `json:"offeringIntent" dynamodbav:"offeringIntent"`
	OfferingRefund bool    `json:"offeringRefund" dynamodbav:"offeringRefund"`
}

// Pool is a named, rule-composed predicate over a Student record.
type Pool struct {
	Name       string      `json:"name" dynamodbav:"name"`
	Attributes []PoolRule  `json:"attributes" dynamodbav:"attributes"`
}

// PoolRule is one rule within a Pool's attribute list. Type is the rule
// kind (e.g. "pool", "offering"); the remaining fields hold its arguments,
// named per the closed rule set in internal/eligibility.
type PoolRule struct {
	Type      string   `json:"type" dynamodbav:"type"`
	Name      string   `json:"name,omitempty" dynamodbav:"name,omitempty"`
	InPool    string   `json:"inpool,omitempty" dynamodbav:"inpool,omitempty"`
	OutPool   string   `json:"outpool,omitempty" dynamodbav:"outpool,omitempty"`
	Pool1     string   `json:"pool1,omitempty" dynamodbav:"pool1,omitempty"`
	Pool2     string   `json:"pool2,omitempty" dynamodbav:"pool2,omitempty"`
	Field     string   `json:"field,omitempty" dynamodbav:"field,omitempty"`
	AID       string   `json:"aid,omitempty" dynamodbav:"aid,omitempty"`
	SubEvent  string   `json:"subevent,omitempty" dynamodbav:"subevent,omitempty"`
	Pools     []string `json:"pools,omitempty" dynamodbav:"pools,omitempty"`
	Retreat   string   `json:"retreat,omitempty" dynamodbav:"retreat,omitempty"`
}

// StageRecord is an externally owned policy knob controlling stage-filter
// selection and subject prefixes.
type StageRecord struct {
	Stage                string            `json:"stage" dynamodbav:"stage"`
	Pools                []string          `json:"pools,omitempty" dynamodbav:"pools,omitempty"`
	Prefix               map[string]string `json:"prefix,omitempty" dynamodbav:"prefix,omitempty"`
	QAStepCheckZoomID    bool              `json:"qaStepCheckZoomId" dynamodbav:"qaStepCheckZoomId"`
}

// Prompt is a localized text fragment used in template variable
// expansion. Key holds the composite "aid-key" or "default-key" string
// the original prompt table stores under its "prompt" attribute.
type Prompt struct {
	Key      string `json:"prompt" dynamodbav:"prompt"`
	Language string `json:"language" dynamodbav:"language"`
	Text     string `json:"text" dynamodbav:"text"`
}

// SubEvent is the per-sub-event structure on an Event record.
type SubEvent struct {
	RegLinkAvailable bool                         `json:"regLinkAvailable" dynamodbav:"regLinkAvailable"`
	EmbeddedEmails   map[string]map[string]string `json:"embeddedEmails" dynamodbav:"embeddedEmails"` // [stage][lang] -> URL
}

// RetreatConfig is one entry of an EventConfig's WhichRetreatsConfig table:
// the event-level truth for a retreat key's prompt and required offering
// amount, as opposed to anything recorded on a student's own program state.
type RetreatConfig struct {
	Prompt        string  `json:"prompt" dynamodbav:"prompt"`
	OfferingTotal float64 `json:"offeringTotal" dynamodbav:"offeringTotal"`
}

// EventConfig holds the free-form Event-level settings the renderer reads.
// WhichRetreatsConfig is keyed by the same retreat keys as a student's
// Programs[aid].WhichRetreats: it is the source of truth for ||retreats||'s
// prompt lookup and ||balance||'s/#if offering installments' required
// offering total, since those only describe which retreats a student is
// enrolled in, not what each retreat costs or prompts as.
type EventConfig struct {
	Currency            string                   `json:"currency" dynamodbav:"currency"`
	WhichRetreatsConfig map[string]RetreatConfig `json:"whichRetreatsConfig,omitempty" dynamodbav:"whichRetreatsConfig,omitempty"`
}

// Event is the supplemental read-only record described in SPEC_FULL.md §3.1.
type Event struct {
	EventCode string              `json:"eventCode" dynamodbav:"eventCode"`
	SubEvents map[string]SubEvent `json:"subEvents" dynamodbav:"subEvents"`
	Config    EventConfig         `json:"config" dynamodbav:"config"`
}

// Credential is a per-account SMTP credential.
type Credential struct {
	Account  string `json:"account" dynamodbav:"account"`
	Username string `json:"username" dynamodbav:"username"`
	Password string `json:"password" dynamodbav:"password"`
}

// RecipientLogEntry is one entry in a dry-run or send recipient log.
type RecipientLogEntry struct {
	Name     string    `json:"name" dynamodbav:"name"`
	Email    string    `json:"email" dynamodbav:"email"`
	SendTime time.Time `json:"sendtime" dynamodbav:"sendtime"`
	Account  string    `json:"account,omitempty" dynamodbav:"account,omitempty"`
}

// PushSubscription is an externally owned UI connection handle.
type PushSubscription struct {
	ID       string `json:"id" dynamodbav:"id"`
	Endpoint string `json:"endpoint" dynamodbav:"endpoint"`
}

// Message is an inbound command-queue message body.
type Message struct {
	WorkOrderID string `json:"workOrderId"`
	StepName    string `json:"stepName"`
	Action      string `json:"action"` // "start" or "stop"
}

// ReceivedMessage pairs a decoded Message with its opaque receipt handle.
type ReceivedMessage struct {
	Message       Message
	ReceiptHandle string
	Malformed     bool
}
