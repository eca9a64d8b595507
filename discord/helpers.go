package discord

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// fieldTag is the parsed form of a request struct field's "discord" tag.
// Recognized entries, comma separated:
//
//	optional               the option is not required
//	description:<text>     option description shown in Discord
//	choices:<v|Label;...>  restrict the option to the listed values
//	default:<value>        value assigned when the option is omitted
type fieldTag struct {
	optional    bool
	description string
	choices     string
	defaultVal  string
}

func parseFieldTag(tag string) fieldTag {
	var parsed fieldTag
	for _, part := range strings.Split(tag, ",") {
		key, value, _ := strings.Cut(strings.TrimSpace(part), ":")
		switch key {
		case "optional":
			parsed.optional = true
		case "description":
			parsed.description = strings.TrimSpace(value)
		case "choices":
			parsed.choices = strings.TrimSpace(value)
		case "default":
			parsed.defaultVal = strings.TrimSpace(value)
		}
	}
	return parsed
}

// parseChoiceList turns a "value|Label;value|Label" tag entry into command
// option choices. A bare entry without a label uses the value as its label.
func parseChoiceList(s string) []*discordgo.ApplicationCommandOptionChoice {
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		value, label, labelled := strings.Cut(pair, "|")
		if !labelled {
			label = value
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  label,
			Value: value,
		})
	}
	return choices
}

// structToCommandOptions generates the slash-command options for a request
// struct. Field names become lowercase option names; the "discord" tag
// controls everything else.
func structToCommandOptions(req Request) ([]*discordgo.ApplicationCommandOption, error) {
	t := reflect.TypeOf(req)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("request prototype %T is not a struct", req)
	}

	var options []*discordgo.ApplicationCommandOption
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := parseFieldTag(field.Tag.Get("discord"))

		name := strings.ToLower(field.Name)
		description := tag.description
		if description == "" {
			description = "Auto-generated option for " + name
		}

		var choices []*discordgo.ApplicationCommandOptionChoice
		if tag.choices != "" {
			choices = parseChoiceList(tag.choices)
		}

		options = append(options, &discordgo.ApplicationCommandOption{
			Type:        optionTypeFor(field.Type.Kind()),
			Name:        name,
			Description: description,
			Required:    !tag.optional,
			Choices:     choices,
		})
	}
	return options, nil
}

func optionTypeFor(kind reflect.Kind) discordgo.ApplicationCommandOptionType {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return discordgo.ApplicationCommandOptionInteger
	case reflect.Float32, reflect.Float64:
		return discordgo.ApplicationCommandOptionNumber
	case reflect.Bool:
		return discordgo.ApplicationCommandOptionBoolean
	default:
		return discordgo.ApplicationCommandOptionString
	}
}

// setDefaults fills zero-valued fields of req (a pointer to a request
// struct) with the default declared in their tag.
func setDefaults(req interface{}) error {
	v := reflect.ValueOf(req)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("setDefaults: want a pointer to struct, got %T", req)
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() || !field.IsZero() {
			continue
		}
		tag := parseFieldTag(t.Field(i).Tag.Get("discord"))
		if tag.defaultVal == "" {
			continue
		}
		if err := setFromString(field, tag.defaultVal); err != nil {
			return fmt.Errorf("default for field %s: %w", t.Field(i).Name, err)
		}
	}
	return nil
}

// setFromString assigns a tag-supplied string to a field of a basic kind.
func setFromString(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s for default value", field.Kind())
	}
	return nil
}
