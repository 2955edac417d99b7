package config

import "time"

// Extraction defaults
const (
	// DefaultMinImageWidth is the minimum pixel width of an included image
	DefaultMinImageWidth = 300

	// DefaultMinImageHeight is the minimum pixel height of an included image
	DefaultMinImageHeight = 200

	// DefaultContentClassPattern matches class names of main-content containers
	DefaultContentClassPattern = "(content|article)"

	// DefaultMaxNodes bounds the number of markup nodes visited per page
	DefaultMaxNodes = 200000
)

// DefaultImageAttributes lists image source attributes from most to least trusted.
var DefaultImageAttributes = []string{"data-original", "data-src", "src"}

// Network defaults
const (
	// DefaultUserAgent is sent with every request; some sites reject Go's default
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	DefaultPageTimeout  = 10 * time.Second
	DefaultImageTimeout = 5 * time.Second
	DefaultFeedTimeout  = 10 * time.Second
	DefaultRunTimeout   = 30 * time.Minute

	// DefaultPerHostRPS is the sustained request rate allowed per host
	DefaultPerHostRPS   = 2.0
	DefaultPerHostBurst = 4
)

// Concurrency defaults
const (
	DefaultFeedWorkers    = 3
	DefaultArticleWorkers = 5
	DefaultImageWorkers   = 4
)

// Pipeline defaults
const (
	DefaultFreshnessHours = 24
	DefaultOutputDir      = "output"
	DefaultFormat         = "pdf"
	DefaultDelivery       = "none"
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultOllamaModel    = "llama3.1:8b"
	DefaultRemarkableDir  = "/News"
)

// Render formats
const (
	FormatPDF  = "pdf"
	FormatEPUB = "epub"
)

// Delivery targets
const (
	DeliveryNone       = "none"
	DeliveryRemarkable = "rmapi"
	DeliveryEmail      = "email"
	DeliveryS3         = "s3"
	DeliveryDrive      = "drive"
)
