package soilsource

// IRDDefaultProjectionEPSG is UTM zone 28N, the projection of IRD centroids.
const IRDDefaultProjectionEPSG = 32628

// NewIRD maps IRD exports. Centroid uploads carry UTM coordinates.
func NewIRD() Adapter {
	return &schemaAdapter{s: schema{
		info: Info{
			Code:                  CodeIRD,
			DisplayName:           "IRD",
			Description:           "Institut de Recherche pour le Développement soil survey",
			LocationTypes:         []LocationType{LocationLonLat, LocationCentroid},
			DefaultProjectionEPSG: IRDDefaultProjectionEPSG,
		},
		id: "Profile_id",
		coords: map[LocationType]coordColumns{
			LocationLonLat:   {x: "lon", y: "lat"},
			LocationCentroid: {x: "X_Centroid", y: "Y_Centroid", reproject: true},
		},
		country:     "Pays",
		description: "Description",
		date:        "Date_prel",
		layers: layerColumns{
			profileID: "Profile_id",
			name:      "Horizon",
			top:       "Top",
			bottom:    "Bottom",
			carbon:    "Carbon",
		},
	}}
}

// NewAFSP maps Africa Soil Profiles database exports.
func NewAFSP() Adapter {
	return &schemaAdapter{s: schema{
		info: Info{
			Code:          CodeAFSP,
			DisplayName:   "AfSP",
			Description:   "Africa Soil Profiles database",
			LocationTypes: []LocationType{LocationLonLat},
		},
		id: "ProfileID",
		coords: map[LocationType]coordColumns{
			LocationLonLat: {x: "X_LonDD", y: "Y_LatDD"},
		},
		country: "Country",
		date:    "T_Year",
		layers: layerColumns{
			profileID: "ProfileID",
			name:      "LayerNr",
			top:       "UpDpth",
			bottom:    "LowDpth",
			carbon:    "OrgC",
		},
	}}
}

// NewWOSIS maps WoSIS snapshot exports.
func NewWOSIS() Adapter {
	return &schemaAdapter{s: schema{
		info: Info{
			Code:          CodeWOSIS,
			DisplayName:   "WoSIS",
			Description:   "World Soil Information Service snapshot",
			LocationTypes: []LocationType{LocationLonLat},
		},
		id: "profile_id",
		coords: map[LocationType]coordColumns{
			LocationLonLat: {x: "longitude", y: "latitude"},
		},
		country: "country_name",
		layers: layerColumns{
			profileID: "profile_id",
			name:      "profile_layer_id",
			top:       "upper_depth",
			bottom:    "lower_depth",
			carbon:    "orgc_value_avg",
		},
	}}
}
