// Package adb drives an Android device through the adb command line tool.
// The scene graph is a uiautomator dump refreshed by polling; touch and
// navigation go through "input" shell commands. Importing the package
// registers it as the platform backend.
package adb
