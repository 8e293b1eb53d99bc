package registry

// Version of the built-in catalog. Bump when a parameter contract changes.
const Version = "2024.11.1"

// Built-in function names.
const (
	FuncGetServices   = "get_services"
	FuncGetProducts   = "get_products"
	FuncGetStoreInfo  = "get_store_info"
	FuncCaptureLead   = "capture_lead"
	FuncCreateBooking = "create_booking"
)

// Store info scopes accepted by get_store_info.
const (
	ScopeHours    = "hours"
	ScopeServices = "services"
	ScopeProducts = "products"
	ScopeAll      = "all"
)

var catalog = []FunctionDefinition{
	{
		Name:        FuncGetServices,
		Description: "List the services the store offers. Pass a free-text query to find the most relevant services, or omit it to list everything.",
		Parameters: Schema{
			{Name: "query", Type: TypeString, Description: "What the customer is looking for, in their own words"},
			{Name: "category", Type: TypeString, Description: "Only return services whose category contains this text"},
		},
	},
	{
		Name:        FuncGetProducts,
		Description: "List the products the store sells. Pass a free-text query to find the most relevant products, or a category to filter.",
		Parameters: Schema{
			{Name: "query", Type: TypeString, Description: "What the customer is looking for, in their own words"},
			{Name: "category", Type: TypeString, Description: "Only return products whose category contains this text"},
		},
	},
	{
		Name:        FuncGetStoreInfo,
		Description: "Get general store information: opening hours, services, products, or everything at once.",
		Parameters: Schema{
			{
				Name:        "scope",
				Type:        TypeEnum,
				Description: "Which part of the store information to return",
				Required:    true,
				Enum:        []string{ScopeHours, ScopeServices, ScopeProducts, ScopeAll},
			},
		},
	},
	{
		Name:        FuncCaptureLead,
		Description: "Save the customer's contact details so the store can follow up. Requires a name and an email or phone number.",
		Parameters: Schema{
			{Name: "name", Type: TypeString, Description: "Customer name", Required: true},
			{Name: "email", Type: TypeString, Description: "Customer email address"},
			{Name: "phone", Type: TypeString, Description: "Customer phone number"},
			{Name: "message", Type: TypeString, Description: "What the customer wants or asked about"},
			{Name: "interest", Type: TypeString, Description: "Service or product the customer is interested in"},
		},
	},
	{
		Name:        FuncCreateBooking,
		Description: "Record an appointment request for a service on a given date. Requires a name, the service and the date.",
		Parameters: Schema{
			{Name: "name", Type: TypeString, Description: "Customer name", Required: true},
			{Name: "service", Type: TypeString, Description: "Service to book", Required: true},
			{Name: "date", Type: TypeString, Description: "Requested date, e.g. 2024-11-30", Required: true},
			{Name: "time", Type: TypeString, Description: "Requested time of day, e.g. 14:30"},
			{Name: "email", Type: TypeString, Description: "Customer email address"},
			{Name: "phone", Type: TypeString, Description: "Customer phone number"},
			{Name: "party_size", Type: TypeNumber, Description: "Number of people"},
			{Name: "notes", Type: TypeString, Description: "Anything else the store should know"},
		},
	},
}

// Default returns the built-in catalog.
func Default() *Registry {
	return MustNew(Version, catalog...)
}
