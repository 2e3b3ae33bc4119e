// Package config loads the pantry configuration file.
//
// The file is YAML. ${VAR} references are replaced with environment values
// before parsing, the document is checked against an embedded CUE schema,
// and keys the file omits keep the values from Default.
//
// Example:
//
//	data_dir: ${HOME}/.local/share/pantry
//	logging:
//	  level: info
//	  format: text
//	hierarchy:
//	  seed_rooms: [Cuisine, Garage]
//	  reject_duplicates: false
//	activity:
//	  retention_days: 30
//	  recent_limit: 5
//	lookup:
//	  base_url: https://world.openfoodfacts.org/api/v2
//	  locale: fr
//	  timeout: 10s
package config
