package config

// DefaultDomains returns the built-in reference-data sources. The hospital
// and emergency services live on the national medical-institution portal,
// the DUR rule services on the drug-safety portal.
func DefaultDomains() map[string]DomainConfig {
	return map[string]DomainConfig{
		"hospitals": {
			BaseURL:     "http://apis.data.go.kr/B552657/HsptlAsembySearchService",
			Path:        "/getHsptlMdcncFullDown",
			Table:       "hospitals",
			NaturalKeys: []string{"hpid"},
			PageSize:    1000,
		},
		"pharmacies": {
			BaseURL:     "http://apis.data.go.kr/B552657/ErmctInsttInfoInqireService",
			Path:        "/getParmacyFullDown",
			Table:       "pharmacies",
			NaturalKeys: []string{"hpid"},
			PageSize:    1000,
		},
		"emergency": {
			BaseURL:     "http://apis.data.go.kr/B552657/ErmctInfoInqireService",
			Path:        "/getEgytListInfoInqire",
			Table:       "emergency_facilities",
			NaturalKeys: []string{"hpid"},
			PageSize:    1000,
		},
		"trauma": {
			BaseURL:     "http://apis.data.go.kr/B552657/ErmctInfoInqireService",
			Path:        "/getStrmListInfoInqire",
			Table:       "trauma_centers",
			NaturalKeys: []string{"hpid"},
			PageSize:    1000,
		},
		"dur_ingredient": {
			BaseURL:     "http://apis.data.go.kr/1471000/DURIrdntInfoService03",
			Table:       "dur_ingredient_rules",
			NaturalKeys: []string{"typeName", "ingrCode", "mixtureIngrCode"},
			PageSize:    100,
			SubResources: []SubResource{
				{Name: "병용금기", Path: "/getUsjntTabooInfoList03", Table: "dur_ingredient_rules"},
				{Name: "특정연령대금기", Path: "/getSpcifyAgrdeTabooInfoList03", Table: "dur_ingredient_rules"},
				{Name: "임부금기", Path: "/getPwnmTabooInfoList03", Table: "dur_ingredient_rules"},
				{Name: "용량주의", Path: "/getCpctyAtentInfoList03", Table: "dur_ingredient_rules"},
				{Name: "투여기간주의", Path: "/getMdctnPdAtentInfoList03", Table: "dur_ingredient_rules"},
				{Name: "노인주의", Path: "/getOdsnAtentInfoList03", Table: "dur_ingredient_rules"},
				{Name: "효능군중복", Path: "/getEfcyDplctInfoList03", Table: "dur_ingredient_rules"},
			},
		},
		"dur_product": {
			BaseURL:     "http://apis.data.go.kr/1471000/DURPrdlstInfoService03",
			Table:       "dur_product_rules",
			NaturalKeys: []string{"typeName", "itemSeq", "mixtureItemSeq"},
			PageSize:    100,
			SubResources: []SubResource{
				{Name: "병용금기", Path: "/getUsjntTabooInfoList03", Table: "dur_product_rules"},
				{Name: "특정연령대금기", Path: "/getSpcifyAgrdeTabooInfoList03", Table: "dur_product_rules"},
				{Name: "임부금기", Path: "/getPwnmTabooInfoList03", Table: "dur_product_rules"},
				{Name: "용량주의", Path: "/getCpctyAtentInfoList03", Table: "dur_product_rules"},
				{Name: "투여기간주의", Path: "/getMdctnPdAtentInfoList03", Table: "dur_product_rules"},
				{Name: "노인주의", Path: "/getOdsnAtentInfoList03", Table: "dur_product_rules"},
				{Name: "효능군중복", Path: "/getEfcyDplctInfoList03", Table: "dur_product_rules"},
			},
		},
	}
}

// DefaultSources returns the built-in crawl-source rules: Wikipedia items
// name article titles filled into a URL template, AMC items carry full URLs.
func DefaultSources() map[string]SourceRule {
	return map[string]SourceRule{
		"WIKIPEDIA": {
			URLTemplate:   "https://ko.wikipedia.org/wiki/{target}",
			MinIntervalMs: 2000,
		},
		"AMC": {
			MinIntervalMs: 3000,
		},
	}
}
