package treasury

import "treasuryvault/crypto"

// ValidateRecipient applies the configured ListMode to addr (spec.md §4.9).
// The two membership sets are independent; switching modes never clears
// either one.
func ValidateRecipient(list *RecipientList, addr crypto.Address) error {
	if list == nil {
		return nil
	}
	switch list.Mode {
	case ListModeWhitelist:
		if _, ok := list.Whitelist[addr.String()]; !ok {
			return ErrRecipientNotWhitelisted
		}
		return nil
	case ListModeBlacklist:
		if _, ok := list.Blacklist[addr.String()]; ok {
			return ErrRecipientBlacklisted
		}
		return nil
	default: // ListModeDisabled
		return nil
	}
}

// AddToWhitelist adds addr to the whitelist membership set.
func AddToWhitelist(list *RecipientList, addr crypto.Address) {
	if list.Whitelist == nil {
		list.Whitelist = make(map[string]struct{})
	}
	list.Whitelist[addr.String()] = struct{}{}
}

// RemoveFromWhitelist removes addr from the whitelist membership set.
func RemoveFromWhitelist(list *RecipientList, addr crypto.Address) {
	delete(list.Whitelist, addr.String())
}

// AddToBlacklist adds addr to the blacklist membership set.
func AddToBlacklist(list *RecipientList, addr crypto.Address) {
	if list.Blacklist == nil {
		list.Blacklist = make(map[string]struct{})
	}
	list.Blacklist[addr.String()] = struct{}{}
}

// RemoveFromBlacklist removes addr from the blacklist membership set.
func RemoveFromBlacklist(list *RecipientList, addr crypto.Address) {
	delete(list.Blacklist, addr.String())
}

// IsWhitelisted reports whitelist membership regardless of the active mode.
func IsWhitelisted(list *RecipientList, addr crypto.Address) bool {
	if list == nil {
		return false
	}
	_, ok := list.Whitelist[addr.String()]
	return ok
}

// IsBlacklisted reports blacklist membership regardless of the active mode.
func IsBlacklisted(list *RecipientList, addr crypto.Address) bool {
	if list == nil {
		return false
	}
	_, ok := list.Blacklist[addr.String()]
	return ok
}
