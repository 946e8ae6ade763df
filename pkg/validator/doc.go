// Package validator provides small composable validation rules.
//
// Rules are built eagerly and evaluated by Apply, which collects every
// failure into ValidationErrors:
//
//	err := validator.Apply(
//		validator.Required("template_id", req.TemplateID),
//		validator.OneOf("priority", req.Priority, priorities),
//	)
//	if validator.IsValidationError(err) {
//		// map to 400
//	}
package validator
