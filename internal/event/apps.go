package event

// App is an application registered in the analytics platform's seed data.
type App struct {
	ID   string
	Name string
}

// KnownApps lists the seeded applications events are attributed to by default.
var KnownApps = []App{
	{ID: "770e8400-e29b-41d4-a716-446655440001", Name: "Acme Web Analytics"},
	{ID: "770e8400-e29b-41d4-a716-446655440002", Name: "Acme Mobile App"},
	{ID: "770e8400-e29b-41d4-a716-446655440003", Name: "Acme API Gateway"},
	{ID: "770e8400-e29b-41d4-a716-446655440004", Name: "TechStart Dashboard"},
	{ID: "770e8400-e29b-41d4-a716-446655440005", Name: "TechStart Mobile"},
	{ID: "770e8400-e29b-41d4-a716-446655440006", Name: "Global Web Platform"},
	{ID: "770e8400-e29b-41d4-a716-446655440007", Name: "Global Mobile Analytics"},
	{ID: "770e8400-e29b-41d4-a716-446655440008", Name: "Global Data Pipeline"},
	{ID: "770e8400-e29b-41d4-a716-446655440009", Name: "Global IoT Analytics"},
	{ID: "770e8400-e29b-41d4-a716-446655440010", Name: "Startup MVP Analytics"},
	{ID: "770e8400-e29b-41d4-a716-446655440011", Name: "Enterprise Portal"},
	{ID: "770e8400-e29b-41d4-a716-446655440012", Name: "Enterprise Mobile Suite"},
	{ID: "770e8400-e29b-41d4-a716-446655440013", Name: "Enterprise API Analytics"},
	{ID: "770e8400-e29b-41d4-a716-446655440014", Name: "Digital Web Tracker"},
	{ID: "770e8400-e29b-41d4-a716-446655440015", Name: "Digital App Analytics"},
	{ID: "770e8400-e29b-41d4-a716-446655440016", Name: "Data Insights Dashboard"},
	{ID: "770e8400-e29b-41d4-a716-446655440017", Name: "Data Insights API"},
}

// RandomAppID returns the ID of a random known application.
func RandomAppID() string {
	return pick(knownAppIDs)
}

var knownAppIDs = appIDs()

func appIDs() []string {
	ids := make([]string, len(KnownApps))
	for i, app := range KnownApps {
		ids[i] = app.ID
	}
	return ids
}
