package tools

// builtins lists every tool in the order the model sees them.
func (r *Registry) builtins() []*Tool {
	return []*Tool{
		{
			Name:        "detect_anomalies",
			Description: "Detects unusual appliance usage, such as devices being left on for an abnormally long time.",
			Parameters:  noParams(),
			Handler:     r.handleDetectAnomalies,
		},
		{
			Name:        "get_top_news_headlines",
			Description: "Gets the top 5 latest news headlines for the user's country.",
			Parameters:  noParams(),
			Handler:     r.handleTopNewsHeadlines,
		},
		{
			Name:        "check_appliance_maintenance",
			Description: "Checks if any appliances have exceeded their recommended usage hours and require maintenance.",
			Parameters:  noParams(),
			Handler:     r.handleCheckMaintenance,
		},
		{
			Name:        "get_weather_data",
			Description: "Gets the live, current weather data for the user's configured location, including temperature and condition.",
			Parameters:  noParams(),
			Handler:     r.handleWeather,
		},
		{
			Name:        "get_user_and_appliances_data",
			Description: "Get essential data about the user and all appliances. Your first step for any analytical query.",
			Parameters:  noParams(),
			Handler:     r.handleUserAndAppliances,
		},
		{
			Name:        "read_usage_logs",
			Description: "Reads detailed historical usage logs for all appliances to analyze patterns and provide data-driven advice.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of log entries to return, newest first (default 50).",
					},
				},
			},
			Handler: r.handleReadUsageLogs,
		},
		{
			Name:        "calculate_usage_cost",
			Description: "Calculates the electricity cost for a given number of units (kWh) based on tiered rates.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"units_kwh": map[string]any{
						"type":        "number",
						"description": "Total kWh units to calculate the cost for.",
					},
				},
				"required": []string{"units_kwh"},
			},
			Handler: r.handleUsageCost,
		},
		{
			Name:        "find_and_control_appliances",
			Description: "Finds and controls one or more appliances by name or type.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appliance_names": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "An array of specific appliance names.",
					},
					"appliance_type": map[string]any{
						"type":        "string",
						"description": "The type of appliances to control, e.g. 'Lighting', 'Fan', or 'all'.",
					},
					"new_state": map[string]any{
						"type": "string",
						"enum": []string{"on", "off"},
					},
				},
				"required": []string{"new_state"},
			},
			Handler: r.handleFindAndControl,
		},
		{
			Name:        "modify_appliance_details",
			Description: "Modifies the details of a specific appliance, like its priority level.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"appliance_name": map[string]any{
						"type":        "string",
						"description": "The exact name of the appliance to modify.",
					},
					"updates": map[string]any{
						"type":        "object",
						"description": `An object with fields to update, e.g. {"priorityLevel": 5}.`,
					},
				},
				"required": []string{"appliance_name", "updates"},
			},
			Handler: r.handleModifyDetails,
		},
		{
			Name:        "add_appliance",
			Description: "Adds a new appliance to the smart home system.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":                  map[string]any{"type": "string"},
					"type":                  map[string]any{"type": "string"},
					"powerRatingKWhPerHour": map[string]any{"type": "number"},
					"description":           map[string]any{"type": "string"},
					"location":              map[string]any{"type": "string"},
				},
				"required": []string{"name", "type", "powerRatingKWhPerHour"},
			},
			Handler: r.handleAddAppliance,
		},
		{
			Name:        "manage_routines",
			Description: "Creates and deletes multiple routines in a single, efficient action. Use this for all routine management.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"routines_to_create": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"name":           map[string]any{"type": "string"},
								"time":           map[string]any{"type": "string", "description": "24h firing time, e.g. '22:30'."},
								"days":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
								"appliance_name": map[string]any{"type": "string"},
								"command":        map[string]any{"type": "string", "enum": []string{"turnOn", "turnOff"}},
							},
							"required": []string{"name", "time", "days", "appliance_name", "command"},
						},
					},
					"routine_names_to_delete": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "An array of exact routine names to delete.",
					},
				},
			},
			Handler: r.handleManageRoutines,
		},
		{
			Name:        "list_routines",
			Description: "Gets a list of all currently active routines.",
			Parameters:  noParams(),
			Handler:     r.handleListRoutines,
		},
		{
			Name:        "set_power_saving_mode",
			Description: "Sets the operating mode. This clears old agent-created routines and provides the necessary data to create new ones.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"mode": map[string]any{
						"type": "string",
						"enum": []string{"balanced", "power-saving", "extreme"},
					},
				},
				"required": []string{"mode"},
			},
			Handler: r.handleSetMode,
		},
		{
			Name:        "calculate_intelligent_projection",
			Description: "Calculates a month-end cost projection from usage patterns, seasonal trends, and outlier-filtered daily averages.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"current_usage_kwh": map[string]any{
						"type":        "number",
						"description": "Current total usage in kWh.",
					},
					"current_cost_inr": map[string]any{
						"type":        "number",
						"description": "Current total cost in INR.",
					},
					"days_passed": map[string]any{
						"type":        "number",
						"description": "Number of days passed in the current month.",
					},
					"monthly_budget": map[string]any{
						"type":        "number",
						"description": "The user's monthly budget in INR.",
					},
				},
				"required": []string{"current_usage_kwh", "current_cost_inr", "days_passed", "monthly_budget"},
			},
			Handler: r.handleProjection,
		},
	}
}

func noParams() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
