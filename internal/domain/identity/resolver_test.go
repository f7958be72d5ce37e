package identity_test

import (
	"testing"

	"github.com/okian/vctrank/internal/domain/identity"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResolver_Normalize(t *testing.T) {
	Convey("Given the default resolver", t, func() {
		r := identity.New()

		Convey("When normalizing known variants", func() {
			Convey("Then KRU spellings converge", func() {
				So(r.Normalize("KRU"), ShouldEqual, "KRÜ Esports")
				So(r.Normalize("Visa KRU Esports"), ShouldEqual, "KRÜ Esports")
				So(r.Normalize("  kru esports "), ShouldEqual, "KRÜ Esports")
			})

			Convey("Then lookups ignore case and surrounding whitespace", func() {
				So(r.Normalize("c9"), ShouldEqual, "Cloud9")
				So(r.Normalize("\tPRX\n"), ShouldEqual, "Paper Rex")
			})
		})

		Convey("When normalizing canonical names", func() {
			Convey("Then they come back unchanged", func() {
				So(r.Normalize("Cloud9"), ShouldEqual, "Cloud9")
				So(r.Normalize("KRÜ Esports"), ShouldEqual, "KRÜ Esports")
				So(r.Normalize(r.Normalize("Visa KRU Esports")), ShouldEqual, "KRÜ Esports")
			})
		})

		Convey("When normalizing unknown names", func() {
			Convey("Then the original input is returned untouched", func() {
				So(r.Normalize("Some New Team"), ShouldEqual, "Some New Team")
				So(r.Normalize("  MiXeD Case  "), ShouldEqual, "  MiXeD Case  ")
				So(r.Normalize(""), ShouldEqual, "")
			})
		})
	})

	Convey("Given a resolver with a reduced alias table", t, func() {
		r := identity.New(identity.WithAliasTable(map[string]string{"x": "Team X"}))

		Convey("Then only the injected aliases apply", func() {
			So(r.Normalize("X"), ShouldEqual, "Team X")
			So(r.Normalize("C9"), ShouldEqual, "C9")
			So(r.Len(), ShouldEqual, 1)
		})
	})

	Convey("Given extra alias groups", t, func() {
		r := identity.New(identity.WithAliasGroups([]identity.AliasGroup{
			{Canonical: "Cloud9 Blue", Variants: []string{"C9"}},
			{Canonical: "  ", Variants: []string{"ignored"}},
		}))

		Convey("Then later groups override defaults", func() {
			So(r.Normalize("C9"), ShouldEqual, "Cloud9 Blue")
			So(r.Normalize("ignored"), ShouldEqual, "ignored")
		})
	})
}

func TestResolver_IsExhibition(t *testing.T) {
	Convey("Given the default resolver", t, func() {
		r := identity.New()

		Convey("When the name is on the exhibition list", func() {
			So(r.IsExhibition("Team International"), ShouldBeTrue)
			So(r.IsExhibition("Team Tenz"), ShouldBeTrue)
		})

		Convey("When the name pairs 'team ' with an indicator", func() {
			So(r.IsExhibition("Team EMEA"), ShouldBeTrue)
			So(r.IsExhibition("team americas"), ShouldBeTrue)
			So(r.IsExhibition("Team Pacific Legends"), ShouldBeTrue)
			So(r.IsExhibition("Team All-Star"), ShouldBeTrue)
		})

		Convey("When the name carries an event phrase", func() {
			So(r.IsExhibition("Champions Showmatch Squad"), ShouldBeTrue)
			So(r.IsExhibition("VCT All-Star Game Red"), ShouldBeTrue)
		})

		Convey("When the name is a competitive team", func() {
			So(r.IsExhibition("Team Heretics"), ShouldBeFalse)
			So(r.IsExhibition("Team Liquid"), ShouldBeFalse)
			So(r.IsExhibition("Team Vitality"), ShouldBeFalse)
			So(r.IsExhibition("Team Secret"), ShouldBeFalse)
			So(r.IsExhibition("Cloud9"), ShouldBeFalse)
		})

		Convey("When an indicator appears without 'team '", func() {
			So(r.IsExhibition("China Rising"), ShouldBeFalse)
			So(r.IsExhibition("Pacific Kings"), ShouldBeFalse)
		})

		Convey("When the exact list entry differs in case", func() {
			So(r.IsExhibition("TEAM WORLD"), ShouldBeTrue) // indicator rule
			So(r.IsExhibition("team tarik"), ShouldBeFalse)
		})

		Convey("When the name is empty", func() {
			So(r.IsExhibition(""), ShouldBeFalse)
		})
	})

	Convey("Given custom exhibition rules", t, func() {
		r := identity.New(identity.WithExhibitionRules(identity.ExhibitionRules{
			Names:  []string{"Dream Team"},
			Events: []string{"charity"},
		}))

		Convey("Then only the custom rules apply", func() {
			So(r.IsExhibition("Dream Team"), ShouldBeTrue)
			So(r.IsExhibition("Charity Cup Five"), ShouldBeTrue)
			So(r.IsExhibition("Team International"), ShouldBeFalse)
		})
	})
}
