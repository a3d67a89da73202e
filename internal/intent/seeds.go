package intent

// SeedQueries are the canonical emergency searches. They anchor both the
// lexical and the semantic signal and also seed the query corpus.
var SeedQueries = []string{
	// Medical
	"heart attack symptoms",
	"heart attack first aid",
	"heart attack emergency number",
	"chest pain sudden sweating",
	"difficulty breathing emergency",
	"stroke symptoms sudden weakness",
	"stroke first aid steps",
	"unconscious person what to do",
	"seizure first aid",
	"severe allergic reaction symptoms",
	"anaphylaxis emergency treatment",
	"burn first aid cold water",
	"nose bleed stop bleeding",
	"fracture first aid",
	"head injury emergency",
	"poisoning symptoms what to do",
	"drowning first aid",
	"asthma attack first aid",
	"diabetic emergency symptoms",

	// Fever and vitals
	"high fever",
	"high fever symptoms",
	"high fever in adults",
	"high fever in children",
	"high body temperature",
	"high fever emergency",
	"high fever when to see doctor",
	"low blood pressure symptoms",
	"high blood pressure emergency",
	"rapid heartbeat symptoms",

	// Accident and injury
	"car accident emergency steps",
	"road accident first aid",
	"bleeding wound first aid",
	"sprain first aid",
	"broken bone symptoms",
	"electric shock first aid",
	"animal bite first aid",
	"snake bite emergency",

	// Fire and gas
	"fire emergency what to do",
	"gas leak emergency steps",
	"smoke inhalation first aid",
	"fire evacuation procedure",
	"how to use fire extinguisher",

	// Natural disasters
	"earthquake safety guidelines",
	"earthquake during night what to do",
	"earthquake evacuation routes",
	"flood emergency safety steps",
	"cyclone emergency precautions",
	"tsunami warning what to do",
	"landslide safety tips",
	"storm shelter safety",

	// Emergency services
	"emergency helpline number india",
	"ambulance number",
	"police emergency number",
	"women emergency helpline",
	"child helpline number",
	"fire department number",

	// General
	"what to do in emergency",
	"how to stay safe during disaster",
	"official government emergency guidelines",
	"emergency preparedness checklist",
	"first aid basics",
	"how to save a life",

	// Bare hazards
	"earthquake",
	"tsunami",
	"flood",
	"cyclone",
	"hurricane",
	"tornado",
	"landslide",
	"wildfire",
	"house fire",
	"gas leak",
	"explosion",
	"heart attack",
	"cardiac arrest",
	"not breathing",
	"overdose",
	"building collapse",
	"trapped",
}

// keywordGroups drives the offline verdict. Order matters: the first group
// with a hit names the category.
var keywordGroups = []struct {
	category string
	words    []string
}{
	{"natural_disaster", []string{
		"earthquake", "flood", "tsunami", "cyclone", "storm", "hurricane",
		"tornado", "landslide", "avalanche", "wildfire",
	}},
	{"medical", []string{
		"bleeding", "cardiac", "heart attack", "stroke", "unconscious",
		"poison", "seizure", "overdose", "not breathing", "choking", "suicide",
	}},
	{"crime", []string{
		"terrorist", "bomb", "shooting", "kidnap", "assault",
	}},
	{"general_emergency", []string{
		"fire", "gas leak", "explosion", "evacuation", "shelter", "rescue",
		"trapped", "help", "emergency", "urgent", "sos", "casualty", "died", "death",
	}},
}

var advisories = []struct {
	keyword string
	tip     string
}{
	{"earthquake", "Drop, cover and hold on. Stay indoors."},
	{"tsunami", "Move inland and to higher ground now."},
	{"gas leak", "Do not use switches or flames. Leave and call from outside."},
	{"fire", "Get out, stay out. Call the fire department."},
	{"flood", "Move to higher ground. Avoid walking in water."},
	{"bleeding", "Apply direct pressure to the wound immediately."},
	{"heart attack", "Call an ambulance. Chew an aspirin if not allergic."},
}

const genericAdvisory = "Stay calm. Locate the nearest safe exit or authority."
