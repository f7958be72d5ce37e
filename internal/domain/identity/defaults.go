package identity

// AliasGroup lists the spellings that refer to one canonical team.
type AliasGroup struct {
	Canonical string
	Variants  []string
}

// ExhibitionRules classify showcase squads that must not appear on
// competitive leaderboards.
type ExhibitionRules struct {
	// Names match exactly.
	Names []string
	// Indicators match case-insensitively, only in names containing "team ".
	Indicators []string
	// Events match case-insensitively anywhere in the name.
	Events []string
}

// DefaultAliasGroups returns the built-in VCT partner-team spellings seen in
// match records.
func DefaultAliasGroups() []AliasGroup {
	return []AliasGroup{
		{Canonical: "KRÜ Esports", Variants: []string{"KRU", "KRÜ", "KRU Esports", "Visa KRU Esports", "Visa KRÜ Esports", "kru esports"}},
		{Canonical: "Leviatán", Variants: []string{"Leviatan", "LEV", "Leviatán Esports", "Leviatan Esports"}},
		{Canonical: "MIBR", Variants: []string{"Made in Brazil", "MIBR Esports"}},
		{Canonical: "FURIA", Variants: []string{"FURIA Esports", "FUR"}},
		{Canonical: "LOUD", Variants: []string{"LOUD Esports"}},
		{Canonical: "100 Thieves", Variants: []string{"100T", "100Thieves"}},
		{Canonical: "Cloud9", Variants: []string{"C9", "Cloud 9"}},
		{Canonical: "G2 Esports", Variants: []string{"G2"}},
		{Canonical: "NRG", Variants: []string{"NRG Esports"}},
		{Canonical: "Sentinels", Variants: []string{"SEN"}},
		{Canonical: "Evil Geniuses", Variants: []string{"EG"}},
		{Canonical: "FNATIC", Variants: []string{"FNC", "Fnatic"}},
		{Canonical: "Team Heretics", Variants: []string{"TH", "Heretics"}},
		{Canonical: "Natus Vincere", Variants: []string{"NAVI", "Na'Vi"}},
		{Canonical: "BBL Esports", Variants: []string{"BBL"}},
		{Canonical: "FUT Esports", Variants: []string{"FUT"}},
		{Canonical: "Karmine Corp", Variants: []string{"KC", "KCorp"}},
		{Canonical: "Team Liquid", Variants: []string{"TL", "Liquid"}},
		{Canonical: "Team Vitality", Variants: []string{"VIT", "Vitality"}},
		{Canonical: "GIANTX", Variants: []string{"GX", "Giants", "Giants Gaming"}},
		{Canonical: "Paper Rex", Variants: []string{"PRX"}},
		{Canonical: "DRX", Variants: []string{"DRX Esports"}},
		{Canonical: "T1", Variants: []string{"T1 Esports"}},
		{Canonical: "Gen.G", Variants: []string{"GEN", "Gen.G Esports", "GenG"}},
		{Canonical: "ZETA DIVISION", Variants: []string{"ZETA", "Zeta Division"}},
		{Canonical: "DetonatioN FocusMe", Variants: []string{"DFM", "DetonatioN Gaming"}},
		{Canonical: "Global Esports", Variants: []string{"GE"}},
		{Canonical: "Talon Esports", Variants: []string{"TLN", "Talon"}},
		{Canonical: "Team Secret", Variants: []string{"TS", "Secret"}},
		{Canonical: "EDward Gaming", Variants: []string{"EDG", "Edward Gaming"}},
		{Canonical: "FunPlus Phoenix", Variants: []string{"FPX"}},
		{Canonical: "Bilibili Gaming", Variants: []string{"BLG"}},
		{Canonical: "Trace Esports", Variants: []string{"TE", "Trace"}},
		{Canonical: "Dragon Ranger Gaming", Variants: []string{"DRG"}},
		{Canonical: "Nova Esports", Variants: []string{"NOVA"}},
		{Canonical: "JDG Esports", Variants: []string{"JDG", "JD Gaming"}},
		{Canonical: "Titan Esports Club", Variants: []string{"TEC"}},
		{Canonical: "Wolves Esports", Variants: []string{"WOL"}},
		{Canonical: "All Gamers", Variants: []string{"AG"}},
		{Canonical: "Xi Lai Gaming", Variants: []string{"XLG"}},
		{Canonical: "2GAME Esports", Variants: []string{"2G", "2Game"}},
		{Canonical: "Apeks", Variants: []string{"APK"}},
		{Canonical: "Rex Regum Qeon", Variants: []string{"RRQ"}},
		{Canonical: "BOOM Esports", Variants: []string{"BOOM"}},
		{Canonical: "Nongshim RedForce", Variants: []string{"NS", "Nongshim"}},
		{Canonical: "Bleed Esports", Variants: []string{"BLD", "Bleed"}},
	}
}

// DefaultExhibitionRules returns the built-in showcase classification.
func DefaultExhibitionRules() ExhibitionRules {
	return ExhibitionRules{
		Names: []string{
			"Team International",
			"Team World",
			"Team Tarik",
			"Team Tenz",
			"Team Thinking",
			"Team Alpha",
			"Team Omega",
		},
		Indicators: []string{
			"international",
			"world",
			"all-star",
			"all star",
			"allstar",
			"legends",
			"creators",
			"streamers",
			"emea",
			"americas",
			"pacific",
			"china",
		},
		Events: []string{
			"showmatch",
			"show match",
			"all-star game",
			"all-stars",
		},
	}
}
