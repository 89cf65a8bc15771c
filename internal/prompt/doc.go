// Package prompt assembles the messages sent to the generation model: the
// system and user prompts per mode and language, the formatted source
// context, the correction prompt and the localized fixed texts. It also
// screens user queries for prompt-injection attempts.
package prompt
