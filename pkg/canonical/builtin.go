package canonical

// Builtin returns the compiled-in dictionary snapshot. It mirrors the trait
// taxonomy the generation pipeline ships with; the file loader exists for
// newer build artifacts.
func Builtin() Dictionary {
	return MustNew(map[string][]Entry{
		DomainSpecies: {
			{Key: "human", Label: "Human", Aliases: []string{"person", "kid", "child"}},
			{Key: "superhero", Label: "Superhero", Aliases: []string{"super hero", "hero"}},
			{Key: "elemental", Label: "Elemental", Aliases: []string{"element being"}},
			{Key: "dragon", Label: "Dragon", Aliases: []string{"baby dragon"}},
			{Key: "alien", Label: "Alien", Aliases: []string{"extraterrestrial", "e.t."}},
			{Key: "robot", Label: "Robot", Aliases: []string{"android", "bot"}},
			{Key: "fairy", Label: "Fairy", Aliases: []string{"faerie", "pixie"}},
			{Key: "mermaid", Label: "Mermaid", Aliases: []string{"merfolk", "merman"}},
			{Key: "unicorn", Label: "Unicorn"},
			{Key: "dinosaur", Label: "Dinosaur", Aliases: []string{"dino"}},
		},
		DomainGenders: {
			{Key: "girl", Label: "Girl", Aliases: []string{"female", "f"}},
			{Key: "boy", Label: "Boy", Aliases: []string{"male", "m"}},
			{Key: "nonbinary", Label: "Nonbinary", Aliases: []string{"non-binary", "enby"}},
		},
		DomainEthnicities: {
			{Key: "hispanic_latino", Label: "Hispanic/Latino", Aliases: []string{"hispanic/latino", "latino", "latina", "latinx"}},
			{Key: "black_african_american", Label: "Black/African American", Aliases: []string{"black", "african american"}},
			{Key: "white", Label: "White", Aliases: []string{"caucasian"}},
			{Key: "east_asian", Label: "East Asian", Aliases: []string{"asian"}},
			{Key: "south_asian", Label: "South Asian", Aliases: []string{"indian", "desi"}},
			{Key: "southeast_asian", Label: "Southeast Asian"},
			{Key: "middle_eastern", Label: "Middle Eastern", Aliases: []string{"mena"}},
			{Key: "native_american", Label: "Native American", Aliases: []string{"american indian", "indigenous"}},
			{Key: "pacific_islander", Label: "Pacific Islander", Aliases: []string{"polynesian"}},
			{Key: "multiracial", Label: "Multiracial", Aliases: []string{"mixed", "mixed race"}},
		},
		DomainLanguages: {
			{Key: "en", Label: "English", Aliases: []string{"english"}},
			{Key: "es", Label: "Spanish", Aliases: []string{"spanish", "espanol"}},
			{Key: "fr", Label: "French", Aliases: []string{"french"}},
			{Key: "de", Label: "German", Aliases: []string{"german"}},
			{Key: "pt", Label: "Portuguese", Aliases: []string{"portuguese"}},
			{Key: "zh", Label: "Chinese", Aliases: []string{"chinese", "mandarin"}},
			{Key: "ja", Label: "Japanese", Aliases: []string{"japanese"}},
			{Key: "hi", Label: "Hindi", Aliases: []string{"hindi"}},
			{Key: "ar", Label: "Arabic", Aliases: []string{"arabic"}},
		},
		DomainPersonalityTraits: {
			{Key: "brave", Label: "Brave", Aliases: []string{"courageous"}},
			{Key: "curious", Label: "Curious", Aliases: []string{"inquisitive"}},
			{Key: "kind", Label: "Kind", Aliases: []string{"caring"}},
			{Key: "funny", Label: "Funny", Aliases: []string{"silly", "goofy"}},
			{Key: "shy", Label: "Shy", Aliases: []string{"timid"}},
			{Key: "adventurous", Label: "Adventurous"},
			{Key: "creative", Label: "Creative", Aliases: []string{"imaginative"}},
			{Key: "determined", Label: "Determined", Aliases: []string{"persistent"}},
			{Key: "gentle", Label: "Gentle"},
			{Key: "energetic", Label: "Energetic", Aliases: []string{"hyper"}},
		},
		DomainAgeBuckets: {
			{Key: "toddler", Label: "Toddler (2-4)", Aliases: []string{"preschool"}},
			{Key: "early_reader", Label: "Early Reader (5-7)", Aliases: []string{"kindergarten"}},
			{Key: "middle_grade", Label: "Middle Grade (8-12)"},
			{Key: "young_teen", Label: "Young Teen (13-15)", Aliases: []string{"teen"}},
		},
		DomainInclusivityTraits: {
			{Key: "wheelchair", Label: "Wheelchair", Aliases: []string{"wheelchair user", "uses a wheelchair"}},
			{Key: "limb_difference", Label: "Limb Difference", Aliases: []string{"amputee"}},
			{Key: "prosthetic_leg", Label: "Prosthetic Leg", Aliases: []string{"prosthetic"}},
			{Key: "hearing_aid", Label: "Hearing Aid", Aliases: []string{"hearing aids"}},
			{Key: "cochlear_implant", Label: "Cochlear Implant"},
			{Key: "glasses", Label: "Glasses", Aliases: []string{"eyeglasses"}},
			{Key: "vitiligo", Label: "Vitiligo"},
			{Key: "down_syndrome", Label: "Down Syndrome", Aliases: []string{"downs syndrome"}},
			{Key: "autism", Label: "Autism", Aliases: []string{"autistic", "asd"}},
			{Key: "cleft_lip", Label: "Cleft Lip"},
			{Key: "albinism", Label: "Albinism"},
			{Key: "birthmark", Label: "Birthmark"},
		},
	})
}
